package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier([]byte("secret"))

	token, err := v.Issue("alice", time.Hour)
	require.NoError(t, err)

	participantID, err := v.ParticipantID(token)
	require.NoError(t, err)
	require.Equal(t, "alice", participantID)
}

func TestVerifier_RejectsWrongSecret(t *testing.T) {
	token, err := NewVerifier([]byte("secret")).Issue("alice", time.Hour)
	require.NoError(t, err)

	_, err = NewVerifier([]byte("other")).ParticipantID(token)
	require.Error(t, err)
}

func TestVerifier_RejectsExpiredToken(t *testing.T) {
	v := NewVerifier([]byte("secret"))

	token, err := v.Issue("alice", -time.Minute)
	require.NoError(t, err)

	_, err = v.ParticipantID(token)
	require.Error(t, err)
}

func TestVerifier_RejectsGarbage(t *testing.T) {
	_, err := NewVerifier([]byte("secret")).ParticipantID("not-a-token")
	require.Error(t, err)
}
