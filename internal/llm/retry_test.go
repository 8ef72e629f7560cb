package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodeOfExtractsEmbeddedCode(t *testing.T) {
	code, ok := StatusCodeOf(errors.New("gemini raw request: status 503"))
	assert.True(t, ok)
	assert.Equal(t, 503, code)
}

func TestStatusCodeOfIgnoresNonStatusNumbers(t *testing.T) {
	_, ok := StatusCodeOf(errors.New("decode response: unexpected EOF"))
	assert.False(t, ok)
}

func TestIsRetryableAndRateLimited(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("openai: 429 Too Many Requests")))
	assert.True(t, IsRetryable(errors.New("anthropic: 503 Service Unavailable")))
	assert.False(t, IsRetryable(errors.New("invalid request: 400 Bad Request")))

	assert.True(t, IsRateLimited(errors.New("openai: 429 Too Many Requests")))
	assert.False(t, IsRateLimited(errors.New("anthropic: 503 Service Unavailable")))
}
