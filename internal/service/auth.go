package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"

	"github.com/totegamma/lostfound/internal/domain"
)

var tracer = otel.Tracer("auth")

type AuthService struct {
	hashes map[string][]byte
}

func NewAuthService(offices []domain.Office) *AuthService {
	hashes := make(map[string][]byte, len(offices))
	for _, o := range offices {
		if o.APIKeyHash == "" {
			slog.Warn(
				"office has no api key, mutating routes are open",
				slog.String("office", o.Name),
				slog.String("module", "auth"),
			)
			continue
		}
		hashes[o.Name] = []byte(o.APIKeyHash)
	}
	return &AuthService{hashes: hashes}
}

type AuthResult struct {
	Office string
}

// AuthAPIKey checks a clerk key against the office's bcrypt hash.
// Offices without a configured hash accept any caller.
func (s *AuthService) AuthAPIKey(ctx context.Context, office, key string) (*AuthResult, error) {
	_, span := tracer.Start(ctx, "Auth.Service.AuthAPIKey")
	defer span.End()

	hash, ok := s.hashes[office]
	if !ok {
		return &AuthResult{Office: office}, nil
	}

	if key == "" {
		span.RecordError(domain.ErrUnauthorized)
		return nil, domain.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(key)); err != nil {
		span.RecordError(err)
		return nil, domain.ErrUnauthorized
	}

	return &AuthResult{Office: office}, nil
}

// HashAPIKey produces the value stored in an office's apiKeyHash.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
