package apiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, "deepseek-ai/DeepSeek-V3", s.Model)
	assert.Equal(t, 0.7, s.Temperature)
	assert.Equal(t, 1000, s.MaxTokens)
	assert.Equal(t, 0.7, s.TopP)
	assert.Equal(t, 50, s.TopK)
	assert.True(t, s.Stream)
	assert.Equal(t, "1024x1024", s.ImageSize)
	assert.Equal(t, 20, s.InferenceSteps)
}

func TestSettings_Apply(t *testing.T) {
	s := DefaultSettings()

	err := s.Apply(map[string]any{
		"model":       "Qwen/QwQ-32B",
		"temperature": 0.2,
		"maxTokens":   float64(2048), // decoded JSON numbers arrive as float64
		"stream":      false,
	})

	assert.NoError(t, err)
	assert.Equal(t, "Qwen/QwQ-32B", s.Model)
	assert.Equal(t, 0.2, s.Temperature)
	assert.Equal(t, 2048, s.MaxTokens)
	assert.False(t, s.Stream)
	// Untouched fields keep their defaults.
	assert.Equal(t, 50, s.TopK)
}

func TestSettings_Apply_UnknownKeyRejected(t *testing.T) {
	s := DefaultSettings()

	err := s.Apply(map[string]any{"temprature": 0.2})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "temprature")
	// The misspelled key never touches the real field.
	assert.Equal(t, 0.7, s.Temperature)
}

func TestSettings_Apply_WrongTypeRejected(t *testing.T) {
	s := DefaultSettings()

	assert.Error(t, s.Apply(map[string]any{"maxTokens": "many"}))
	assert.Error(t, s.Apply(map[string]any{"maxTokens": 1.5}))
	assert.Error(t, s.Apply(map[string]any{"stream": "yes"}))
	assert.Equal(t, 1000, s.MaxTokens)
}

func TestSettings_CompletionPayload(t *testing.T) {
	s := DefaultSettings()
	messages := []map[string]any{{"role": "user", "content": "hi"}}

	payload := s.CompletionPayload(messages)

	assert.Equal(t, "deepseek-ai/DeepSeek-V3", payload["model"])
	assert.Equal(t, 1000, payload["max_tokens"])
	assert.Equal(t, true, payload["stream"])
	assert.Equal(t, messages, payload["messages"])
}

func TestSettings_ImagePayload(t *testing.T) {
	s := DefaultSettings()

	payload := s.ImagePayload("Kwai-Kolors/Kolors", "a lighthouse at dusk")

	assert.Equal(t, "Kwai-Kolors/Kolors", payload["model"])
	assert.Equal(t, "a lighthouse at dusk", payload["prompt"])
	assert.Equal(t, "1024x1024", payload["image_size"])
	assert.Equal(t, 20, payload["num_inference_steps"])
}
