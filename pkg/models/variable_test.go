package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSensitiveKey(t *testing.T) {
	sensitive := []string{"password", "user_password", "API_KEY", "sessionToken", "authHeader", "db_secret", "oauth_credentials"}
	for _, key := range sensitive {
		assert.True(t, IsSensitiveKey(key), key)
	}

	plain := []string{"cart", "items", "status", "url", "count"}
	for _, key := range plain {
		assert.False(t, IsSensitiveKey(key), key)
	}
}

func TestIterationKeyPattern(t *testing.T) {
	assert.Equal(t, "*@iter:3:*", IterationKeyPattern(3))
}

func TestIsIterationDerived(t *testing.T) {
	derived := &Variable{Key: "item@iter:3:name"}
	assert.True(t, derived.IsIterationDerived())

	plain := &Variable{Key: "items"}
	assert.False(t, plain.IsIterationDerived())
}
