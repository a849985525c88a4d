package generator

import "context"

// Fragment is one incremental piece of model output. A Fragment with a
// non-nil Err is terminal: the channel is closed right after it and any
// content already delivered remains valid.
type Fragment struct {
	Content string
	Err     error
}

// Generator produces model output for a fully assembled prompt. Stream is
// the canonical path; Generate buffers the stream into a single string.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) (<-chan Fragment, error)
}

// Collect drains a fragment stream into the full response text. Providers
// whose SDK is stream-first can implement Generate with it.
func Collect(ctx context.Context, g Generator, prompt string) (string, error) {
	fragments, err := g.Stream(ctx, prompt)
	if err != nil {
		return "", err
	}

	var full []byte
	for fragment := range fragments {
		if fragment.Err != nil {
			return "", fragment.Err
		}
		full = append(full, fragment.Content...)
	}

	return string(full), nil
}

// Emit delivers a fragment unless the context is done first. It reports
// whether the consumer is still listening.
func Emit(ctx context.Context, out chan<- Fragment, fragment Fragment) bool {
	select {
	case out <- fragment:
		return true
	case <-ctx.Done():
		return false
	}
}
