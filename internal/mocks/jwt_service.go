package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/shelfd/internal/service/auth"
)

// MockJWTService implements auth.JWTService for testing
type MockJWTService struct {
	GenerateTokenFn func(ctx context.Context, p auth.Principal) (string, error)
	ValidateTokenFn func(ctx context.Context, tokenString string) (*auth.Claims, error)

	// Default values used when the functions are nil
	Token       string
	Err         error
	Claims      *auth.Claims
	ValidateErr error

	mu        sync.Mutex
	validated []string
}

var _ auth.JWTService = (*MockJWTService)(nil)

// GenerateToken implements the auth.JWTService interface
func (m *MockJWTService) GenerateToken(ctx context.Context, p auth.Principal) (string, error) {
	if m.GenerateTokenFn != nil {
		return m.GenerateTokenFn(ctx, p)
	}
	return m.Token, m.Err
}

// ValidateToken implements the auth.JWTService interface
func (m *MockJWTService) ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	m.mu.Lock()
	m.validated = append(m.validated, tokenString)
	m.mu.Unlock()

	if m.ValidateTokenFn != nil {
		return m.ValidateTokenFn(ctx, tokenString)
	}
	return m.Claims, m.ValidateErr
}

// ValidatedTokens returns every token passed to ValidateToken, in order.
func (m *MockJWTService) ValidatedTokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.validated...)
}

// ClaimsFor returns valid claims for p.
func ClaimsFor(p auth.Principal) *auth.Claims {
	return &auth.Claims{Name: p.Name, Admin: p.Admin, Subject: p.Name}
}
