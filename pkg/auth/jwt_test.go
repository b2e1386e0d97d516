package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTValidator(t *testing.T) {
	v, err := NewJWTValidator("secret", "graphsync")
	require.NoError(t, err)

	valid, err := v.IssueToken("alice", time.Hour)
	require.NoError(t, err)
	expired, err := v.IssueToken("alice", -time.Hour)
	require.NoError(t, err)

	other, err := NewJWTValidator("other-secret", "graphsync")
	require.NoError(t, err)
	forged, err := other.IssueToken("alice", time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString([]byte("secret"))
	require.NoError(t, err)

	selfMarker, err := v.IssueToken("@", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "valid with bearer prefix", token: "Bearer " + valid},
		{name: "valid bare token", token: valid},
		{name: "missing", token: "Bearer ", wantErr: ErrMissingToken},
		{name: "expired", token: expired, wantErr: ErrExpiredToken},
		{name: "bad signature", token: forged, wantErr: ErrInvalidSignature},
		{name: "wrong issuer", token: wrongIssuer, wantErr: ErrInvalidClaims},
		{name: "garbage", token: "not-a-jwt", wantErr: ErrInvalidToken},
		{name: "self marker subject parses but is not an author", token: selfMarker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.ValidateToken(tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			author, err := claims.Author()
			if claims.Subject == "@" {
				assert.ErrorIs(t, err, ErrInvalidClaims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", author.String())
		})
	}
}

func TestNewJWTValidator_RequiresSecret(t *testing.T) {
	_, err := NewJWTValidator("", "graphsync")
	assert.Error(t, err)
}
