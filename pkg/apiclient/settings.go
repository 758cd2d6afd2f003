package apiclient

import (
	"fmt"
)

// GenerationSettings holds the tunable parameters for completions and
// image generation.
type GenerationSettings struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	TopK             int
	FrequencyPenalty float64
	Stream           bool
	ImageSize        string
	InferenceSteps   int
}

// DefaultSettings returns the stock generation parameters.
func DefaultSettings() GenerationSettings {
	return GenerationSettings{
		Model:            "deepseek-ai/DeepSeek-V3",
		Temperature:      0.7,
		MaxTokens:        1000,
		TopP:             0.7,
		TopK:             50,
		FrequencyPenalty: 0,
		Stream:           true,
		ImageSize:        "1024x1024",
		InferenceSteps:   20,
	}
}

// Apply merges a set of keyed overrides into the settings. Unknown keys
// and wrongly typed values are rejected so that typos surface instead
// of silently keeping the old value.
func (s *GenerationSettings) Apply(changes map[string]any) error {
	for key, value := range changes {
		switch key {
		case "model":
			v, ok := value.(string)
			if !ok {
				return typeError(key, "string", value)
			}
			s.Model = v
		case "temperature":
			v, ok := floatValue(value)
			if !ok {
				return typeError(key, "number", value)
			}
			s.Temperature = v
		case "maxTokens":
			v, ok := intValue(value)
			if !ok {
				return typeError(key, "integer", value)
			}
			s.MaxTokens = v
		case "topP":
			v, ok := floatValue(value)
			if !ok {
				return typeError(key, "number", value)
			}
			s.TopP = v
		case "topK":
			v, ok := intValue(value)
			if !ok {
				return typeError(key, "integer", value)
			}
			s.TopK = v
		case "frequencyPenalty":
			v, ok := floatValue(value)
			if !ok {
				return typeError(key, "number", value)
			}
			s.FrequencyPenalty = v
		case "stream":
			v, ok := value.(bool)
			if !ok {
				return typeError(key, "bool", value)
			}
			s.Stream = v
		case "imageSize":
			v, ok := value.(string)
			if !ok {
				return typeError(key, "string", value)
			}
			s.ImageSize = v
		case "inferenceSteps":
			v, ok := intValue(value)
			if !ok {
				return typeError(key, "integer", value)
			}
			s.InferenceSteps = v
		default:
			return fmt.Errorf("apiclient: unknown setting %q", key)
		}
	}
	return nil
}

// CompletionPayload builds the request body for a chat completion;
// the caller supplies the message history.
func (s GenerationSettings) CompletionPayload(messages []map[string]any) map[string]any {
	return map[string]any{
		"model":             s.Model,
		"messages":          messages,
		"temperature":       s.Temperature,
		"max_tokens":        s.MaxTokens,
		"top_p":             s.TopP,
		"top_k":             s.TopK,
		"frequency_penalty": s.FrequencyPenalty,
		"stream":            s.Stream,
	}
}

// ImagePayload builds the request body for image generation.
func (s GenerationSettings) ImagePayload(model, prompt string) map[string]any {
	return map[string]any{
		"model":               model,
		"prompt":              prompt,
		"image_size":          s.ImageSize,
		"num_inference_steps": s.InferenceSteps,
	}
}

func typeError(key, want string, got any) error {
	return fmt.Errorf("apiclient: setting %q wants %s, got %T", key, want, got)
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
