package crypto

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
)

func TestHasherIsDomainSeparated(t *testing.T) {
	h := NewHasher()

	a := h.Sum(primary.HashMessage, []byte("payload"))
	assert.Equal(t, a, h.Sum(primary.HashMessage, []byte("payload")))
	assert.NotEqual(t, a, h.Sum(primary.HashResult, []byte("payload")))
	assert.True(t, strings.HasPrefix(a, "b2-"))
	assert.Len(t, a, 3+64)

	// length prefixes keep part boundaries significant
	assert.NotEqual(t, h.Sum(primary.HashDedupe, []byte("ab"), []byte("c")), h.Sum(primary.HashDedupe, []byte("a"), []byte("bc")))
}

func TestOperatorToken(t *testing.T) {
	svc := NewJWTService(&config.JwtConfig{Secret: "s3cret", TokenTTL: time.Minute})
	ctx := context.Background()

	token, err := svc.GenerateTokenHMAC(ctx, "HS256", map[string]interface{}{"sub": "ops", "team": "acme"})
	require.NoError(t, err)

	ok, err := svc.VerifyTokenHMAC(ctx, token, "HS256")
	require.NoError(t, err)
	assert.True(t, ok)

	claims, err := svc.DecodeOperator(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "acme", claims.Team)

	other := NewJWTService(&config.JwtConfig{Secret: "different"})
	_, err = other.DecodeOperator(ctx, token)
	assert.Error(t, err)
}
