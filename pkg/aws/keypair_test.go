package aws

import (
	"testing"

	"github.com/pivotal/ciborg/internal/awstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPublicKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIOMqqnkVzrm0SdG6UOoqKLsabgH5C9okWi0dh2l9GKJl ci@example"

func TestAddKeyPair(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)

	require.NoError(t, s.AddKeyPair(t.Context(), "ciborg", testPublicKey))
	require.NoError(t, s.AddKeyPair(t.Context(), "ciborg", "ssh-rsa different"))

	assert.Equal(t, 1, fake.CallCount("ImportKeyPair"))

	keys, err := s.KeyPairs(t.Context())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "ciborg", keys[0].Name)
	assert.Equal(t, "us-east-1", keys[0].Region)
	assert.NotEmpty(t, keys[0].Fingerprint)
}

func TestDeleteKeyPair(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)
	require.NoError(t, s.AddKeyPair(t.Context(), "ciborg", testPublicKey))

	require.NoError(t, s.DeleteKeyPair(t.Context(), "ciborg"))
	require.NoError(t, s.DeleteKeyPair(t.Context(), "ciborg"))

	keys, err := s.KeyPairs(t.Context())
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, 1, fake.CallCount("DeleteKeyPair"))
}

func TestKeyPairsProviderFailure(t *testing.T) {
	fake := awstest.NewEC2()
	fake.FailAll = "RequestLimitExceeded"
	s := newTestSession(t, fake)

	_, err := s.KeyPairs(t.Context())
	require.ErrorIs(t, err, ErrProvider)

	err = s.AddKeyPair(t.Context(), "ciborg", testPublicKey)
	require.ErrorIs(t, err, ErrProvider)
}
