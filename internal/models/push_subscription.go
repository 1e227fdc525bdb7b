package models

import "time"

// PushSubscription is a browser push channel keyed by its endpoint.
type PushSubscription struct {
	Endpoint     string     `db:"endpoint" json:"endpoint"`
	P256dhKey    string     `db:"p256dh_key" json:"p256dh_key"`
	AuthKey      string     `db:"auth_key" json:"auth_key"`
	UserID       *string    `db:"user_id" json:"user_id,omitempty"`
	Department   Department `db:"department" json:"department"`
	Semester     Semester   `db:"semester" json:"semester"`
	SubscribedAt time.Time  `db:"subscribed_at" json:"subscribed_at"`
}
