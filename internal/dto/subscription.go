package dto

// SubscribeKeys are the browser generated encryption keys of a push subscription.
type SubscribeKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// SubscribeRequest mirrors the PushSubscription JSON produced by browsers.
type SubscribeRequest struct {
	Endpoint string         `json:"endpoint"`
	Keys     *SubscribeKeys `json:"keys"`
}

// SubscribeResult reports whether the endpoint was new.
type SubscribeResult struct {
	Created bool
	Message string
}

// VAPIDKeyResponse exposes the application server key used by browsers to subscribe.
type VAPIDKeyResponse struct {
	VAPIDKey string `json:"vapid_key"`
}
