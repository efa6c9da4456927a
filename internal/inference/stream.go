package inference

import (
	"context"
	"strings"
	"time"
)

// DeltaHandler receives incremental text fragments from CompleteStream.
type DeltaHandler func(delta string) error

const (
	streamWordsPerChunk = 4
	streamChunkDelay    = 100 * time.Millisecond
)

// CompleteStream runs a single-shot completion and re-chunks the final text
// into small word groups with a short pacing delay between them, so front
// ends that render partial output get a typing feel without the provider
// actually streaming to us. The context cancels pacing between chunks.
func (c *Client) CompleteStream(ctx context.Context, prompt []Message, userMessage string, onDelta DeltaHandler) (string, error) {
	full, err := c.Complete(ctx, prompt, userMessage)
	if err != nil {
		return "", err
	}
	if err := emitWordChunks(ctx, full, onDelta); err != nil {
		return "", err
	}
	return full, nil
}

func emitWordChunks(ctx context.Context, text string, onDelta DeltaHandler) error {
	if onDelta == nil {
		return nil
	}
	words := strings.Fields(text)
	for start := 0; start < len(words); start += streamWordsPerChunk {
		end := start + streamWordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[start:end], " ")
		if start > 0 {
			chunk = " " + chunk
		}
		if err := onDelta(chunk); err != nil {
			return err
		}
		if end == len(words) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(streamChunkDelay):
		}
	}
	return nil
}
