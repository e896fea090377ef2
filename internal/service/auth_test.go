package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/totegamma/lostfound/internal/domain"
)

func TestAuthAPIKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sekret"), bcrypt.MinCost)
	require.NoError(t, err)

	s := NewAuthService([]domain.Office{
		{Name: "wroclaw", APIKeyHash: string(hash)},
		{Name: "open"},
	})
	ctx := context.Background()

	res, err := s.AuthAPIKey(ctx, "wroclaw", "sekret")
	require.NoError(t, err)
	assert.Equal(t, "wroclaw", res.Office)

	_, err = s.AuthAPIKey(ctx, "wroclaw", "wrong")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	_, err = s.AuthAPIKey(ctx, "wroclaw", "")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	_, err = s.AuthAPIKey(ctx, "open", "")
	assert.NoError(t, err)
}

func TestHashAPIKey(t *testing.T) {
	hash, err := HashAPIKey("klucz")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("klucz")))
}
