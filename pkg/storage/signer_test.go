package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadSignerRoundTrip(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Hour)

	token, expiresAt, err := signer.Sign("job-1", "debtors-job-1.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	jobID, name, parsedExpiry, err := signer.Verify(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "debtors-job-1.pdf", name)
	assert.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestDownloadSignerExpiry(t *testing.T) {
	signer := NewDownloadSigner("secret", 10*time.Millisecond)

	token, _, err := signer.Sign("job-1", "debtors-job-1.pdf")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, _, _, err = signer.Verify(token, false)
	require.Error(t, err)

	// cleanup resolves stale tokens with the expiry check skipped
	jobID, name, _, err := signer.Verify(token, true)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "debtors-job-1.pdf", name)
}

func TestDownloadSignerRejectsTampering(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Hour)

	token, _, err := signer.Sign("job-1", "debtors-job-1.pdf")
	require.NoError(t, err)

	// swapping the job ID invalidates the signature
	parts := strings.Split(token, ".")
	parts[0] = "job-2"
	_, _, _, err = signer.Verify(strings.Join(parts, "."), false)
	require.Error(t, err)

	// a token signed with another secret is rejected too
	other := NewDownloadSigner("other", time.Hour)
	foreign, _, err := other.Sign("job-1", "debtors-job-1.pdf")
	require.NoError(t, err)
	_, _, _, err = signer.Verify(foreign, false)
	require.Error(t, err)
}
