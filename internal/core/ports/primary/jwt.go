package primary

import (
	"context"
)

// OperatorClaims identifies the caller of an operator route
type OperatorClaims struct {
	Subject string
	Team    string
}

type JWTService interface {
	GenerateTokenHMAC(ctx context.Context, method string, claims map[string]interface{}) (string, error)
	VerifyTokenHMAC(ctx context.Context, token string, method string) (bool, error)
	DecodeOperator(ctx context.Context, token string) (OperatorClaims, error)
}
