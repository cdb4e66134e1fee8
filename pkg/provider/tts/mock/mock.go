// Package mock provides a test double for [tts.Provider].
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/medshadow/pkg/audio"
	"github.com/MrWong99/medshadow/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records a single invocation of Provider.Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice tts.VoiceProfile
}

// Provider returns a canned clip and records every call.
type Provider struct {
	mu sync.Mutex

	// Clip is returned by Synthesize when SynthesizeErr is nil. The zero value
	// is replaced with 100 ms of 16 kHz mono silence.
	Clip audio.Clip

	SynthesizeErr error

	Voices        []tts.VoiceProfile
	ListVoicesErr error

	calls []SynthesizeCall
}

// Synthesize records the call and returns Clip, SynthesizeErr.
func (p *Provider) Synthesize(_ context.Context, text string, voice tts.VoiceProfile) (audio.Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, SynthesizeCall{Text: text, Voice: voice})
	if p.SynthesizeErr != nil {
		return audio.Clip{}, p.SynthesizeErr
	}
	if p.Clip.SampleRate == 0 {
		return audio.Clip{PCM: make([]byte, 3200), SampleRate: 16000, Channels: 1}, nil
	}
	return p.Clip, nil
}

// ListVoices returns Voices, ListVoicesErr.
func (p *Provider) ListVoices(context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Voices, p.ListVoicesErr
}

// Calls returns a copy of every recorded Synthesize call.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.calls))
	copy(out, p.calls)
	return out
}
