// Package llmtest provides a scripted fake Invoker for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/webpilot-ai/webpilot/llm"
)

type scripted struct {
	resp *llm.StructuredResponse
	err  error
}

// Fake is a scripted llm.Invoker: responses and errors are dequeued in the
// order they were enqueued. Safe for concurrent use.
type Fake struct {
	mu     sync.Mutex
	queue  []scripted
	calls  []llm.StructuredRequest
	blockC chan struct{}
}

// NewFake creates an empty fake invoker.
func NewFake() *Fake {
	return &Fake{}
}

// Enqueue schedules a successful response with the given fields and token counts.
func (f *Fake) Enqueue(fields map[string]any, inputTokens, outputTokens int) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, scripted{resp: &llm.StructuredResponse{
		Fields:       fields,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}})
	return f
}

// EnqueueError schedules a failure.
func (f *Fake) EnqueueError(err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, scripted{err: err})
	return f
}

// BlockUntilCancelled makes the next call block until its context is done,
// then return the context error. Used to exercise cancellation paths.
func (f *Fake) BlockUntilCancelled() *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockC = make(chan struct{})
	return f
}

// InvokeStructured records the request and pops the next scripted result.
func (f *Fake) InvokeStructured(ctx context.Context, req *llm.StructuredRequest) (*llm.StructuredResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, *req)
	block := f.blockC
	f.blockC = nil
	var next scripted
	if block == nil {
		if len(f.queue) == 0 {
			f.mu.Unlock()
			return nil, llm.NewError(llm.ErrUpstreamError, "fake: no scripted response")
		}
		next = f.queue[0]
		f.queue = f.queue[1:]
	}
	f.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-block:
			return nil, llm.NewError(llm.ErrUpstreamError, "fake: unblocked without result")
		}
	}
	if next.err != nil {
		return nil, next.err
	}
	return next.resp, nil
}

// Name implements llm.Invoker.
func (f *Fake) Name() string { return "fake" }

// Calls returns a copy of every request seen so far.
func (f *Fake) Calls() []llm.StructuredRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.StructuredRequest, len(f.calls))
	copy(out, f.calls)
	return out
}

// Remaining reports how many scripted results are still queued.
func (f *Fake) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

var _ llm.Invoker = (*Fake)(nil)
