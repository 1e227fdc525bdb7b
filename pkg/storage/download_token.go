package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Download token failures.
var (
	ErrTokenMalformed = errors.New("malformed download token")
	ErrTokenSignature = errors.New("download token signature mismatch")
	ErrTokenExpired   = errors.New("download token expired")
)

var tokenEncoding = base64.RawURLEncoding

// DownloadClaims is what a verified token vouches for.
type DownloadClaims struct {
	AttachmentID string
	Path         string
	ExpiresAt    time.Time
}

// DownloadSigner issues expiring HMAC-SHA256 tokens binding an attachment id to its stored path.
type DownloadSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewDownloadSigner builds a signer. A non-positive ttl means one day.
func NewDownloadSigner(secret string, ttl time.Duration) *DownloadSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DownloadSigner{key: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source.
func (s *DownloadSigner) WithClock(now func() time.Time) *DownloadSigner {
	s.now = now
	return s
}

// Sign returns a token for the attachment and the instant it stops being accepted.
func (s *DownloadSigner) Sign(attachmentID, path string) (string, time.Time, error) {
	if attachmentID == "" || path == "" {
		return "", time.Time{}, errors.New("attachment id and path are required")
	}
	if len(s.key) == 0 {
		return "", time.Time{}, errors.New("download signing secret is not configured")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	body := strings.Join([]string{attachmentID, path, strconv.FormatInt(expiresAt.Unix(), 10)}, "\n")
	return tokenEncoding.EncodeToString([]byte(body)) + "." + tokenEncoding.EncodeToString(s.mac(body)), expiresAt, nil
}

// Verify checks the signature and expiry of token.
func (s *DownloadSigner) Verify(token string) (DownloadClaims, error) {
	encBody, encSig, ok := strings.Cut(token, ".")
	if !ok {
		return DownloadClaims{}, ErrTokenMalformed
	}
	rawBody, err := tokenEncoding.DecodeString(encBody)
	if err != nil {
		return DownloadClaims{}, ErrTokenMalformed
	}
	sig, err := tokenEncoding.DecodeString(encSig)
	if err != nil {
		return DownloadClaims{}, ErrTokenMalformed
	}
	body := string(rawBody)
	if !hmac.Equal(sig, s.mac(body)) {
		return DownloadClaims{}, ErrTokenSignature
	}

	fields := strings.Split(body, "\n")
	if len(fields) != 3 {
		return DownloadClaims{}, ErrTokenMalformed
	}
	exp, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return DownloadClaims{}, ErrTokenMalformed
	}
	claims := DownloadClaims{AttachmentID: fields[0], Path: fields[1], ExpiresAt: time.Unix(exp, 0)}
	if !s.now().Before(claims.ExpiresAt) {
		return claims, ErrTokenExpired
	}
	return claims, nil
}

func (s *DownloadSigner) mac(body string) []byte {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(body)) //nolint:errcheck
	return h.Sum(nil)
}
