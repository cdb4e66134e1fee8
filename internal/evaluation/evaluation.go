// Package evaluation scores shadowing attempts against a scenario's reference
// sentence and records them as progress.
//
// A [Service] takes either a typed transcript or a recording. Recordings are
// transcribed by the configured [stt.Provider] with the scenario vocabulary
// as keyword hints. Both paths share the same scoring: the bag-of-words
// [scoring.Score], the per-word [scoring.Diff], the order-aware word error
// rate, and phonetic hints for near misses. The best score is persisted via
// [store.ProgressStore.SaveProgress].
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/medshadow/internal/feedback"
	"github.com/MrWong99/medshadow/internal/observe"
	"github.com/MrWong99/medshadow/internal/transcript/phonetic"
	"github.com/MrWong99/medshadow/pkg/audio"
	"github.com/MrWong99/medshadow/pkg/provider/stt"
	"github.com/MrWong99/medshadow/pkg/provider/tts"
	"github.com/MrWong99/medshadow/pkg/scoring"
	"github.com/MrWong99/medshadow/pkg/store"
)

// ErrSpeechUnavailable is returned by the audio operations when no provider
// of the required kind is configured.
var ErrSpeechUnavailable = errors.New("evaluation: speech provider not configured")

// ErrProviderFailed wraps errors returned by a configured speech provider.
var ErrProviderFailed = errors.New("evaluation: speech provider failed")

// defaultKeywordBoost is the boost given to each scenario word when
// transcribing.
const defaultKeywordBoost = 2.0

// Assessment is the scoring outcome for one transcript.
type Assessment struct {
	Score scoring.Result     `json:"score"`
	Diff  scoring.DiffResult `json:"diff"`
	Hints []phonetic.Hint    `json:"hints"`
	WER   scoring.ErrorRate  `json:"wordErrorRate"`
}

// Report is an Assessment of a persisted attempt.
type Report struct {
	Assessment

	ScenarioID int64  `json:"scenarioId"`
	Source     string `json:"source"`
	Transcript string `json:"transcript"`

	// Confidence is the recogniser's confidence for audio attempts, zero for
	// typed ones.
	Confidence float64 `json:"confidence,omitempty"`

	Progress store.ProgressUpdate `json:"progress"`
}

// Service evaluates attempts. It is safe for concurrent use.
type Service struct {
	scenarios store.ScenarioStore
	progress  store.ProgressStore

	stt     stt.Provider
	sttName string
	tts     tts.Provider
	ttsName string

	matcher  *phonetic.Matcher
	journal  feedback.Journal
	metrics  *observe.Metrics
	language string
	format   audio.Format
	voice    tts.VoiceProfile
	boost    float64
}

// Option configures a [Service].
type Option func(*Service)

// WithSTT enables [Service.EvaluateAudio]. name labels metrics.
func WithSTT(name string, p stt.Provider) Option {
	return func(s *Service) { s.sttName, s.stt = name, p }
}

// WithTTS enables [Service.Synthesize]. name labels metrics.
func WithTTS(name string, p tts.Provider) Option {
	return func(s *Service) { s.ttsName, s.tts = name, p }
}

// WithMatcher sets the phonetic matcher. nil disables hints.
func WithMatcher(m *phonetic.Matcher) Option {
	return func(s *Service) { s.matcher = m }
}

// WithJournal sets where attempts are journaled.
func WithJournal(j feedback.Journal) Option {
	return func(s *Service) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithMetrics overrides [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLanguage sets the BCP-47 language passed to the recogniser.
func WithLanguage(lang string) Option {
	return func(s *Service) { s.language = lang }
}

// WithSampleRate sets the rate recordings are resampled to before
// transcription. Recordings are always downmixed to mono.
func WithSampleRate(rate int) Option {
	return func(s *Service) {
		if rate > 0 {
			s.format = audio.Format{SampleRate: rate, Channels: 1}
		}
	}
}

// WithVoice sets the voice used for reference playback.
func WithVoice(v tts.VoiceProfile) Option {
	return func(s *Service) { s.voice = v }
}

// WithKeywordBoost sets the boost applied to scenario vocabulary hints.
func WithKeywordBoost(b float64) Option {
	return func(s *Service) { s.boost = b }
}

// New returns a Service reading scenarios from scenarios and recording
// attempts in progress.
func New(scenarios store.ScenarioStore, progress store.ProgressStore, opts ...Option) *Service {
	s := &Service{
		scenarios: scenarios,
		progress:  progress,
		matcher:   phonetic.New(),
		journal:   feedback.Nop{},
		language:  "en-US",
		format:    audio.STTFormat,
		boost:     defaultKeywordBoost,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// SpeechEnabled reports which audio operations are available.
func (s *Service) SpeechEnabled() (recognition, synthesis bool) {
	return s.stt != nil, s.tts != nil
}

// Assess scores transcript against reference without persisting anything.
// It fails with [scoring.ErrInvalidInput] for text that is not valid UTF-8.
func (s *Service) Assess(reference, transcript string) (Assessment, error) {
	if err := scoring.ValidateInput(reference, transcript); err != nil {
		return Assessment{}, err
	}
	diff := scoring.Diff(reference, transcript)
	a := Assessment{
		Score: scoring.Score(reference, transcript),
		Diff:  diff,
		Hints: []phonetic.Hint{},
		WER:   scoring.WordErrorRate(reference, transcript),
	}
	if s.matcher != nil {
		a.Hints = s.matcher.Hints(diff)
	}
	return a, nil
}

// Evaluate scores a typed transcript of scenarioID and records the attempt
// for userID. An unknown scenario yields [store.ErrNotFound].
func (s *Service) Evaluate(ctx context.Context, userID, scenarioID int64, transcript string) (Report, error) {
	ctx, span := observe.StartSpan(ctx, "evaluation.Evaluate", trace.WithAttributes(
		attribute.Int64("scenario.id", scenarioID),
	))
	defer span.End()

	sc, err := s.scenarios.GetScenario(ctx, scenarioID)
	if err != nil {
		return Report{}, fmt.Errorf("evaluation: load scenario %d: %w", scenarioID, err)
	}
	return s.record(ctx, userID, sc, transcript, feedback.SourceText, 0)
}

// EvaluateAudio transcribes clip and evaluates the result like
// [Service.Evaluate]. It returns [ErrSpeechUnavailable] without an STT
// provider, [audio.ErrUnsupportedFormat] for clips that cannot be converted,
// and [stt.ErrNoSpeech] when nothing was recognised.
func (s *Service) EvaluateAudio(ctx context.Context, userID, scenarioID int64, clip audio.Clip) (Report, error) {
	if s.stt == nil {
		return Report{}, ErrSpeechUnavailable
	}
	ctx, span := observe.StartSpan(ctx, "evaluation.EvaluateAudio", trace.WithAttributes(
		attribute.Int64("scenario.id", scenarioID),
		attribute.String("stt.provider", s.sttName),
	))
	defer span.End()

	if clip.Empty() {
		return Report{}, fmt.Errorf("evaluation: empty recording: %w", stt.ErrNoSpeech)
	}
	sc, err := s.scenarios.GetScenario(ctx, scenarioID)
	if err != nil {
		return Report{}, fmt.Errorf("evaluation: load scenario %d: %w", scenarioID, err)
	}
	converted, err := clip.Convert(s.format)
	if err != nil {
		return Report{}, fmt.Errorf("evaluation: convert recording: %w", err)
	}

	req := stt.Request{Clip: converted, Language: s.language, Keywords: s.keywords(sc)}
	start := time.Now()
	tr, err := s.stt.Transcribe(ctx, req)
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("provider", s.sttName)))
	switch {
	case errors.Is(err, stt.ErrNoSpeech):
		s.metrics.RecordProviderRequest(ctx, s.sttName, "stt", "ok")
		return Report{}, fmt.Errorf("evaluation: transcribe: %w", err)
	case err != nil:
		s.metrics.RecordProviderRequest(ctx, s.sttName, "stt", "error")
		s.metrics.RecordProviderError(ctx, s.sttName, "stt")
		span.RecordError(err)
		return Report{}, fmt.Errorf("evaluation: transcribe: %w: %w", ErrProviderFailed, err)
	}
	s.metrics.RecordProviderRequest(ctx, s.sttName, "stt", "ok")
	if tr.Blank() {
		return Report{}, fmt.Errorf("evaluation: transcribe: %w", stt.ErrNoSpeech)
	}

	return s.record(ctx, userID, sc, tr.Text, feedback.SourceAudio, tr.Confidence)
}

// Synthesize renders scenarioID's English sentence for playback.
func (s *Service) Synthesize(ctx context.Context, scenarioID int64) (audio.Clip, error) {
	if s.tts == nil {
		return audio.Clip{}, ErrSpeechUnavailable
	}
	ctx, span := observe.StartSpan(ctx, "evaluation.Synthesize", trace.WithAttributes(
		attribute.Int64("scenario.id", scenarioID),
		attribute.String("tts.provider", s.ttsName),
	))
	defer span.End()

	sc, err := s.scenarios.GetScenario(ctx, scenarioID)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("evaluation: load scenario %d: %w", scenarioID, err)
	}

	start := time.Now()
	clip, err := s.tts.Synthesize(ctx, sc.SentenceEn, s.voice)
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("provider", s.ttsName)))
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, s.ttsName, "tts", "error")
		s.metrics.RecordProviderError(ctx, s.ttsName, "tts")
		span.RecordError(err)
		return audio.Clip{}, fmt.Errorf("evaluation: synthesize scenario %d: %w: %w", scenarioID, ErrProviderFailed, err)
	}
	s.metrics.RecordProviderRequest(ctx, s.ttsName, "tts", "ok")
	return clip, nil
}

func (s *Service) record(ctx context.Context, userID int64, sc store.Scenario, transcript, source string, confidence float64) (Report, error) {
	a, err := s.Assess(sc.SentenceEn, transcript)
	if err != nil {
		return Report{}, fmt.Errorf("evaluation: %w", err)
	}

	upd, err := s.progress.SaveProgress(ctx, userID, sc.ID, a.Score.Score)
	if err != nil {
		return Report{}, fmt.Errorf("evaluation: save progress: %w", err)
	}
	s.metrics.RecordEvaluation(ctx, source, a.Score.Score)

	if err := s.journal.Record(feedback.Attempt{
		UserID:       userID,
		ScenarioID:   sc.ID,
		Source:       source,
		Transcript:   transcript,
		Score:        a.Score.Score,
		MatchedWords: a.Score.MatchCount,
		TotalWords:   a.Score.TotalWords,
		WER:          a.WER.Rate,
		Missed:       a.Diff.Missing,
		IsNewRecord:  upd.IsNewRecord,
	}); err != nil {
		observe.Logger(ctx).Warn("attempt journal write failed", "err", err)
	}

	observe.Logger(ctx).Debug("attempt evaluated",
		"user_id", userID,
		"scenario_id", sc.ID,
		"source", source,
		"score", a.Score.Score,
		"new_record", upd.IsNewRecord,
	)

	return Report{
		Assessment: a,
		ScenarioID: sc.ID,
		Source:     source,
		Transcript: transcript,
		Confidence: confidence,
		Progress:   upd,
	}, nil
}

func (s *Service) keywords(sc store.Scenario) []stt.KeywordBoost {
	out := make([]stt.KeywordBoost, 0, len(sc.Words))
	for _, w := range sc.Words {
		out = append(out, stt.KeywordBoost{Keyword: w.Word, Boost: s.boost})
	}
	return out
}
