package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePath = "notice_attachments/multiple/timetable_1767225600_ab12cd34.pdf"

func TestDownloadSignerRoundTrip(t *testing.T) {
	issued := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	signer := NewDownloadSigner("secret", time.Hour).WithClock(func() time.Time { return issued })

	token, expiresAt, err := signer.Sign("att-1", samplePath)
	require.NoError(t, err)
	assert.True(t, expiresAt.Equal(issued.Add(time.Hour)))
	assert.NotContains(t, token, "/")

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "att-1", claims.AttachmentID)
	assert.Equal(t, samplePath, claims.Path)
	assert.True(t, claims.ExpiresAt.Equal(expiresAt))
}

func TestDownloadSignerExpiry(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	signer := NewDownloadSigner("secret", time.Minute).WithClock(func() time.Time { return now })
	token, _, err := signer.Sign("att-1", samplePath)
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = signer.Verify(token)
	require.NoError(t, err)

	now = now.Add(time.Second)
	claims, err := signer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, "att-1", claims.AttachmentID)
}

func TestDownloadSignerRejects(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Hour)
	token, _, err := signer.Sign("att-1", samplePath)
	require.NoError(t, err)

	_, err = NewDownloadSigner("other-secret", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrTokenSignature)

	body, sig, _ := strings.Cut(token, ".")
	forged, _, err := signer.Sign("att-2", samplePath)
	require.NoError(t, err)
	forgedBody, _, _ := strings.Cut(forged, ".")
	_, err = signer.Verify(forgedBody + "." + sig)
	assert.ErrorIs(t, err, ErrTokenSignature)

	for _, bad := range []string{"", "not-a-token", body + ".%%%", "%%%." + sig} {
		_, err = signer.Verify(bad)
		assert.ErrorIs(t, err, ErrTokenMalformed, bad)
	}
}

func TestDownloadSignerRequiresInputs(t *testing.T) {
	_, _, err := NewDownloadSigner("", time.Hour).Sign("att-1", samplePath)
	assert.Error(t, err)
	_, _, err = NewDownloadSigner("secret", time.Hour).Sign("", samplePath)
	assert.Error(t, err)
}
