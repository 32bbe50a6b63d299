package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locallibrary/internal/platform/crypto"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := crypto.HashPassword("Sup3rSecret")
	require.NoError(t, err)
	assert.NotEqual(t, "Sup3rSecret", hash)

	assert.True(t, crypto.VerifyPassword(hash, "Sup3rSecret"))
	assert.False(t, crypto.VerifyPassword(hash, "sup3rsecret"))
	assert.False(t, crypto.VerifyPassword(hash, ""))
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"valid", "Passw0rd", nil},
		{"valid long", "A-much-longer-passw0rd", nil},
		{"too short", "Pw1", crypto.ErrPasswordTooShort},
		{"exactly seven", "Passw0r", crypto.ErrPasswordTooShort},
		{"no uppercase", "passw0rd", crypto.ErrPasswordNoUpper},
		{"no lowercase", "PASSW0RD", crypto.ErrPasswordNoLower},
		{"no number", "Password", crypto.ErrPasswordNoNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := crypto.ValidatePasswordStrength(tt.password)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
