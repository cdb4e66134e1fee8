// Package tts defines the Provider interface for Text-to-Speech backends.
//
// The shadowing flow plays a scenario's reference sentence before the
// learner repeats it. Sentences are short, so synthesis returns one complete
// clip per call.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/MrWong99/medshadow/pkg/audio"
)

// ErrEmptyText is returned when Synthesize is called without any text.
var ErrEmptyText = errors.New("tts: text must not be empty")

// VoiceProfile selects a voice on a provider.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier. Empty selects the
	// provider's default voice.
	ID string `json:"id"`

	Name string `json:"name"`

	// Provider identifies which TTS provider this voice belongs to.
	Provider string `json:"provider"`

	// SpeedFactor adjusts speaking rate (0.5-2.0, 0 or 1.0 = default). Slower
	// playback is useful for beginner scenarios.
	SpeedFactor float64 `json:"speedFactor,omitempty"`

	// Metadata holds provider-specific voice attributes (accent, gender).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with voice and returns the whole utterance.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (audio.Clip, error)

	// ListVoices returns the voices the provider currently offers.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
