package apiclient

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"go.uber.org/zap"
)

const (
	streamDataPrefix   = "data: "
	streamDoneSentinel = "[DONE]"
)

// UpdateFunc receives the accumulated content and reasoning content so
// far, not the individual deltas. Consumers can render the arguments
// directly without folding state of their own.
type UpdateFunc func(content, reasoningContent string)

type streamDelta struct {
	Content          *string `json:"content"`
	ReasoningContent *string `json:"reasoning_content"`
}

type streamChunk struct {
	Choices []struct {
		Delta streamDelta `json:"delta"`
	} `json:"choices"`
}

// ProcessStream consumes an SSE completion stream, accumulating delta
// fragments and invoking onUpdate after each one. Pointer fields
// distinguish an absent delta field (skipped) from an empty string
// (appended, callback still fires). Records that fail to parse are
// logged and skipped. The body is closed before returning on every
// path, and a canceled context stops consumption with ctx.Err().
func ProcessStream(ctx context.Context, body io.ReadCloser, onUpdate UpdateFunc, logger *zap.Logger) error {
	defer body.Close()
	if logger == nil {
		logger = zap.NewNop()
	}

	var content, reasoning strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, streamDataPrefix) {
			continue
		}
		payload := strings.TrimPrefix(line, streamDataPrefix)
		if payload == streamDoneSentinel {
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			logger.Warn("skipping malformed stream record", zap.Error(err))
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		fired := false
		if delta.Content != nil {
			content.WriteString(*delta.Content)
			fired = true
		}
		if delta.ReasoningContent != nil {
			reasoning.WriteString(*delta.ReasoningContent)
			fired = true
		}
		if fired && onUpdate != nil {
			onUpdate(content.String(), reasoning.String())
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	// Stream ended without the sentinel; treat as a normal close.
	return nil
}
