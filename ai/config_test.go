package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())
	assert.NotEmpty(t, config.EmbeddingHost)
	assert.NotEmpty(t, config.EmbeddingModel)
}

func TestConfigOptions(t *testing.T) {
	config := NewConfig(
		WithEmbeddingHost("https://api.example.com/v1"),
		WithEmbeddingModel("text-embedding-3-small"),
		WithAPIToken("secret"),
	)

	assert.Equal(t, "https://api.example.com/v1", config.EmbeddingHost)
	assert.Equal(t, "text-embedding-3-small", config.EmbeddingModel)
	assert.Equal(t, "secret", config.APIToken)
}

func TestConfigValidate_MissingFields(t *testing.T) {
	config := NewConfig(WithEmbeddingHost("  "))
	assert.Error(t, config.Validate())

	config = NewConfig(WithEmbeddingModel(""))
	assert.Error(t, config.Validate())
}

func TestRateLimitError_Hint(t *testing.T) {
	err := &RateLimitError{RetryAfterHint: 0}
	assert.Zero(t, err.RetryAfter())
}
