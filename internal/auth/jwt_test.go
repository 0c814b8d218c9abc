package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func TestGenerateAndParse(t *testing.T) {
	iss := NewIssuer(secret, "sasbridge", time.Hour)

	token, err := iss.Generate("analyst")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	claims, err := iss.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "analyst", claims.Subject)
	assert.Equal(t, "sasbridge", claims.Issuer)
}

func TestParse_Rejects(t *testing.T) {
	iss := NewIssuer(secret, "sasbridge", time.Hour)
	valid, err := iss.Generate("analyst")
	require.NoError(t, err)

	expired := NewIssuer(secret, "sasbridge", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.Generate("analyst")
	require.NoError(t, err)

	otherSecret, err := NewIssuer([]byte("another-secret-another-secret-xx"), "sasbridge", time.Hour).Generate("analyst")
	require.NoError(t, err)

	otherIssuer, err := NewIssuer(secret, "someone-else", time.Hour).Generate("analyst")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "analyst",
		Issuer:    "sasbridge",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not.a.token",
		"empty":        "",
		"expired":      expiredToken,
		"wrong secret": otherSecret,
		"wrong issuer": otherIssuer,
		"alg none":     noneToken,
		"tampered":     swapPayload(valid, otherIssuer),
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := iss.Parse(tok)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestGenerate_RequiresSubject(t *testing.T) {
	_, err := NewIssuer(secret, "", time.Hour).Generate("")
	assert.Error(t, err)
}

// swapPayload keeps the header and signature of a and the claims of b.
func swapPayload(a, b string) string {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	return pa[0] + "." + pb[1] + "." + pa[2]
}
