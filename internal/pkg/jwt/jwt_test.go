package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateToken("alice", true, secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)
	require.True(t, claims.IsSuperuser)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("bob", false, []byte("a"), time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(token, []byte("b"))
	require.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateToken("bob", false, secret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(token, secret)
	require.Error(t, err)
}
