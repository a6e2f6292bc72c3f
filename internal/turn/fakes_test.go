package turn

import (
	"context"
	"errors"

	"philoagent/internal/llm"
)

// fakeProvider returns queued replies in order, repeating the last one
// once the queue is drained, or an error if failNext is armed.
type fakeProvider struct {
	replies  []string
	calls    int
	failNext bool
}

func (f *fakeProvider) Invoke(ctx context.Context, msgs []llm.Message, opts llm.InvokeOptions) (string, error) {
	if !opts.DisableTools {
		return "", errors.New("tool calls must be disabled for every core invocation")
	}
	if f.failNext {
		f.failNext = false
		return "", errors.New("injected failure")
	}
	idx := f.calls
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	f.calls++
	if idx < 0 {
		return "", errors.New("no replies queued")
	}
	return f.replies[idx], nil
}

// fakeVectorSource returns a fixed, queued batch of results per call.
type fakeVectorSource struct {
	batches [][]QueryResult
	calls   int
	err     error
}

func (f *fakeVectorSource) Query(ctx context.Context, queries []QueryAndFilters) ([]QueryResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.batches) {
		f.calls++
		return nil, nil
	}
	out := f.batches[f.calls]
	f.calls++
	return out, nil
}

type fakeEncyclopediaSource struct {
	batches [][]QueryResult
	calls   int
	err     error
}

func (f *fakeEncyclopediaSource) Query(ctx context.Context, queries []string, conversation []llm.Message) ([]QueryResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.batches) {
		f.calls++
		return nil, nil
	}
	out := f.batches[f.calls]
	f.calls++
	return out, nil
}
