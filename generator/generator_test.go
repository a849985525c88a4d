package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streamOnly struct {
	fragments []Fragment
	streamErr error
}

func (g *streamOnly) Generate(ctx context.Context, prompt string) (string, error) {
	return Collect(ctx, g, prompt)
}

func (g *streamOnly) Stream(ctx context.Context, prompt string) (<-chan Fragment, error) {
	if g.streamErr != nil {
		return nil, g.streamErr
	}

	out := make(chan Fragment)

	go func() {
		defer close(out)
		for _, fragment := range g.fragments {
			if !Emit(ctx, out, fragment) {
				return
			}
		}
	}()

	return out, nil
}

func TestCollect_ConcatenatesFragments(t *testing.T) {
	t.Parallel()

	g := &streamOnly{fragments: []Fragment{{Content: "a"}, {Content: "b"}, {Content: "c"}}}

	full, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "abc", full)
}

func TestCollect_StreamError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("unavailable")
	g := &streamOnly{streamErr: wantErr}

	_, err := g.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, wantErr)
}

func TestCollect_TerminalFragmentError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("mid-stream failure")
	g := &streamOnly{fragments: []Fragment{{Content: "partial"}, {Err: wantErr}}}

	_, err := g.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, wantErr)
}

func TestEmit_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan Fragment)
	assert.False(t, Emit(ctx, out, Fragment{Content: "dropped"}))
}
