package emailerror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendGridRecipientErrorIsNotRetryable(t *testing.T) {
	c := NewClassifier()
	got := c.Classify("sendgrid", errors.New("550 5.1.1 mailbox not found"), 400)
	assert.Equal(t, ErrorTypeRecipient, got.Type)
	assert.False(t, got.Retryable)
}

func TestSendGridProviderErrorIsRetryable(t *testing.T) {
	c := NewClassifier()
	got := c.Classify("sendgrid", errors.New("rate limit exceeded"), 429)
	assert.Equal(t, ErrorTypeProvider, got.Type)
	assert.True(t, got.Retryable)
}

func TestSESQuotaErrorIsRetryable(t *testing.T) {
	c := NewClassifier()
	got := c.Classify("ses", errors.New("Sending quota exceeded"), 0)
	assert.Equal(t, ErrorTypeProvider, got.Type)
	assert.True(t, got.Retryable)
}

func TestSMTPUserUnknownIsNotRetryable(t *testing.T) {
	c := NewClassifier()
	got := c.Classify("smtp", errors.New("550 user unknown"), 0)
	assert.Equal(t, ErrorTypeRecipient, got.Type)
	assert.False(t, got.Retryable)
}

func TestUnknownProviderFallsBackToHTTPStatus(t *testing.T) {
	c := NewClassifier()
	got := c.Classify("carrier-pigeon", errors.New("something broke"), 503)
	assert.Equal(t, ErrorTypeProvider, got.Type)
	assert.True(t, got.Retryable)
}

func TestClassifyNilErrorReturnsNil(t *testing.T) {
	c := NewClassifier()
	assert.Nil(t, c.Classify("sendgrid", nil, 0))
}
