// Package mock provides a test double for [stt.Provider].
//
// Example:
//
//	p := &mock.Provider{Result: stt.Transcript{Text: "the patient is stable"}}
//	tr, _ := p.Transcribe(ctx, req)
//	// len(p.Calls()) == 1
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/medshadow/pkg/provider/stt"
)

var _ stt.Provider = (*Provider)(nil)

// Provider returns a canned transcript and records every request.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil.
	Result stt.Transcript

	// Err, if non-nil, is returned from Transcribe.
	Err error

	calls []stt.Request
}

// Transcribe records req and returns Result, Err.
func (p *Provider) Transcribe(_ context.Context, req stt.Request) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	if p.Err != nil {
		return stt.Transcript{}, p.Err
	}
	return p.Result, nil
}

// Calls returns a copy of every recorded request.
func (p *Provider) Calls() []stt.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]stt.Request, len(p.calls))
	copy(out, p.calls)
	return out
}

// Reset clears recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}
