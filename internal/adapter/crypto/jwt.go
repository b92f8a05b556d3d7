package crypto

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
)

var _ primary.JWTService = (*JWTServiceImpl)(nil)

var (
	ErrInvalidToken = fmt.Errorf("invalid token")
)

type JWTServiceImpl struct {
	HMACSecretKey string
	TokenTTL      time.Duration
}

func NewJWTService(jwtConfig *config.JwtConfig) *JWTServiceImpl {
	return &JWTServiceImpl{
		HMACSecretKey: jwtConfig.Secret,
		TokenTTL:      jwtConfig.TokenTTL,
	}
}

func (J JWTServiceImpl) GenerateTokenHMAC(ctx context.Context, method string, claims map[string]interface{}) (string, error) {
	signingMethod := jwt.GetSigningMethod(method)
	if signingMethod == nil {
		return "", fmt.Errorf("unsupported signing method: %s", method)
	}

	ttl := J.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	if _, exists := claims["exp"]; !exists {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}

	tok := jwt.NewWithClaims(signingMethod, jwt.MapClaims(claims))
	return tok.SignedString([]byte(J.HMACSecretKey))
}

func (J JWTServiceImpl) VerifyTokenHMAC(ctx context.Context, token string, method string) (bool, error) {
	parsed, err := J.parse(token, method)
	if err != nil {
		return false, err
	}
	return parsed.Valid, nil
}

// DecodeOperator verifies token and extracts the operator identity
func (J JWTServiceImpl) DecodeOperator(ctx context.Context, token string) (primary.OperatorClaims, error) {
	parsed, err := J.parse(token, jwt.SigningMethodHS256.Alg())
	if err != nil {
		return primary.OperatorClaims{}, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return primary.OperatorClaims{}, ErrInvalidToken
	}
	sub, _ := claims.GetSubject()
	team, _ := claims["team"].(string)
	return primary.OperatorClaims{Subject: sub, Team: team}, nil
}

func (J JWTServiceImpl) parse(token string, method string) (*jwt.Token, error) {
	signingMethod := jwt.GetSigningMethod(method)
	if signingMethod == nil {
		return nil, fmt.Errorf("unsupported signing method: %s", method)
	}

	return jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(J.HMACSecretKey), nil
	}, jwt.WithValidMethods([]string{signingMethod.Alg()}))
}
