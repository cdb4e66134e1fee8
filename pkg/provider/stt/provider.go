// Package stt defines the Provider interface for Speech-to-Text backends.
//
// A learner's recording arrives as one complete clip, so the interface is a
// single request/response call rather than a streaming session. Adapters
// that talk to streaming services (Deepgram) stream the clip internally and
// return the joined final transcript.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrWong99/medshadow/pkg/audio"
)

// ErrNoSpeech is returned when the provider recognised no words at all.
var ErrNoSpeech = errors.New("stt: no speech recognised")

// KeywordBoost is a vocabulary hint that raises the recognition probability
// of an uncommon word, such as a scenario's medical terms.
type KeywordBoost struct {
	Keyword string

	// Boost is the intensity of the hint on the provider's own scale.
	Boost float64
}

// Request is a single transcription job.
type Request struct {
	// Clip must be 16-bit PCM. Most adapters expect [audio.STTFormat] and
	// callers convert before submitting.
	Clip audio.Clip

	// Language is a BCP-47 tag such as "en-US". Empty uses the adapter default.
	Language string

	Keywords []KeywordBoost
}

// WordDetail holds per-word metadata for providers that report it.
type WordDetail struct {
	Word       string        `json:"word"`
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Confidence float64       `json:"confidence"`
}

// Transcript is the recognised text of a clip.
type Transcript struct {
	Text string `json:"text"`

	// Confidence is 0 when the provider does not report one.
	Confidence float64 `json:"confidence"`

	Words []WordDetail `json:"words,omitempty"`
}

// Blank reports whether the transcript contains no words.
func (t Transcript) Blank() bool {
	return strings.TrimSpace(t.Text) == ""
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognises the speech in req.Clip. It returns [ErrNoSpeech]
	// (possibly wrapped) when the clip contained no recognisable words.
	Transcribe(ctx context.Context, req Request) (Transcript, error)
}
