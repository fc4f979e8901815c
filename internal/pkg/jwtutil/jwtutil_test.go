package jwtutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("s3cret", "ops", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, RoleOperator, claims.Role)
}

func TestParseRejects(t *testing.T) {
	token, err := GenerateToken("s3cret", "ops", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken("other", token)
	assert.Error(t, err)

	expired, err := GenerateToken("s3cret", "ops", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("s3cret", expired)
	assert.Error(t, err)

	_, err = ParseToken("s3cret", "not.a.token")
	assert.Error(t, err)
}

func TestGenerateRequiresSecret(t *testing.T) {
	_, err := GenerateToken("", "ops", time.Hour)
	assert.Error(t, err)
}
