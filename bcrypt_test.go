package slimexpress_test

import (
	"strings"
	"testing"

	slimexpress "github.com/MrGharbiii/slim-express"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherHash(t *testing.T) {
	hasher := slimexpress.NewBcryptHasher(bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.Hash(tt.password)

			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, slimexpress.HasTextCode(err, slimexpress.TextCodeValidation))
				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hash)

			cost, err := bcrypt.Cost([]byte(hash))
			require.NoError(t, err)
			assert.Equal(t, bcrypt.MinCost, cost)

			ok, err := hasher.Verify(tt.password, hash)
			assert.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestBcryptHasherVerify(t *testing.T) {
	hasher := slimexpress.NewBcryptHasher(bcrypt.MinCost)
	password := "testPassword123!"
	hash, err := hasher.Hash(password)
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		wantOK   bool
		wantCode string
	}{
		{
			name:     "Matching password",
			password: password,
			hash:     hash,
			wantOK:   true,
		},
		{
			name:     "Wrong password",
			password: "wrongPassword",
			hash:     hash,
		},
		{
			name:     "Invalid hash",
			password: password,
			hash:     "invalidhash",
			wantCode: slimexpress.TextCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := hasher.Verify(tt.password, tt.hash)
			assert.Equal(t, tt.wantOK, ok)

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, slimexpress.HasTextCode(err, tt.wantCode))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBcryptHasherCost(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, slimexpress.NewBcryptHasher(1).Cost())
	assert.Equal(t, bcrypt.MaxCost, slimexpress.NewBcryptHasher(99).Cost())
	assert.Equal(t, 10, slimexpress.NewBcryptHasher(10).Cost())
	assert.GreaterOrEqual(t, slimexpress.NewBcryptHasher(0).Cost(), bcrypt.MinCost)
}

func TestBcryptHasherTooLong(t *testing.T) {
	hasher := slimexpress.NewBcryptHasher(bcrypt.MinCost)

	_, err := hasher.Hash(strings.Repeat("a", 100))
	require.Error(t, err)
	assert.True(t, slimexpress.HasTextCode(err, slimexpress.TextCodeInternal))
}
