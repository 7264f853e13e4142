package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_InvalidAPIKeyIsFatal(t *testing.T) {
	err := classify(errors.New("request failed: status 401 unauthorized"))

	var modelErr *Error
	require.True(t, errors.As(err, &modelErr))
	assert.Equal(t, ErrInvalidAPIKey, modelErr.Kind)
	assert.True(t, modelErr.Fatal())
}

func TestClassify_RateLimitIsRetryable(t *testing.T) {
	err := classify(errors.New("status 429 too many requests"))

	var modelErr *Error
	require.True(t, errors.As(err, &modelErr))
	assert.Equal(t, ErrRateLimit, modelErr.Kind)
	assert.False(t, modelErr.Fatal())
}

func TestClassify_ConnectionRefusedKind(t *testing.T) {
	err := classify(errors.New("dial tcp: connection refused"))

	var modelErr *Error
	require.True(t, errors.As(err, &modelErr))
	assert.Equal(t, ErrConnectionReset, modelErr.Kind)
}

func TestClassify_UnknownErrorIsNetworkError(t *testing.T) {
	err := classify(errors.New("some transport oddity"))

	var modelErr *Error
	require.True(t, errors.As(err, &modelErr))
	assert.Equal(t, ErrNetworkError, modelErr.Kind)
}

func TestToChatMessages_AttachesImageOnlyToFinalUserMessage(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "latest"},
	}

	out := toChatMessages(msgs, "base64data")
	require.Len(t, out, 4)

	assert.Nil(t, out[0].MultiContent)
	assert.Nil(t, out[1].MultiContent)
	assert.Nil(t, out[2].MultiContent)
	require.Len(t, out[3].MultiContent, 2)
	assert.Contains(t, out[3].MultiContent[1].ImageURL.URL, "base64data")
}

func TestToChatMessages_NoScreenshotMeansNoMultiContent(t *testing.T) {
	msgs := []Message{{Role: RoleUser, Content: "hi"}}
	out := toChatMessages(msgs, "")
	assert.Nil(t, out[0].MultiContent)
}
