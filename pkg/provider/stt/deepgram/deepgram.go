// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API. A clip is streamed in fixed-size binary frames,
// followed by a CloseStream message; the final results Deepgram sends until
// it closes the socket are joined into one transcript.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/medshadow/pkg/provider/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	// chunkBytes is 100 ms of 16 kHz mono PCM.
	chunkBytes = 3200

	defaultTimeout = 30 * time.Second
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default BCP-47 language code for recognition.
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the streaming endpoint URL. Used by tests and for
// self-hosted Deepgram deployments.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithTimeout bounds a whole Transcribe call, from dial until Deepgram
// closes the stream. Default 30s; zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
	timeout  time.Duration
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
		timeout:  defaultTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe streams req.Clip to Deepgram and returns the joined finals.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	if req.Clip.Empty() {
		return stt.Transcript{}, fmt.Errorf("deepgram: %w", stt.ErrNoSpeech)
	}

	wsURL, err := p.buildURL(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()

	var finals []stt.Transcript
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		pcm := req.Clip.PCM
		for len(pcm) > 0 {
			n := min(chunkBytes, len(pcm))
			if err := conn.Write(gctx, websocket.MessageBinary, pcm[:n]); err != nil {
				return fmt.Errorf("deepgram: send audio: %w", err)
			}
			pcm = pcm[n:]
		}
		if err := conn.Write(gctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
			return fmt.Errorf("deepgram: close stream: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		for {
			_, msg, err := conn.Read(gctx)
			if err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
					return nil
				}
				return fmt.Errorf("deepgram: read: %w", err)
			}
			t, ok := parseDeepgramResponse(msg)
			if ok && t.final && strings.TrimSpace(t.Text) != "" {
				finals = append(finals, t.Transcript)
			}
		}
	})

	if err := g.Wait(); err != nil {
		return stt.Transcript{}, err
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")

	tr := join(finals)
	if tr.Blank() {
		return stt.Transcript{}, fmt.Errorf("deepgram: %w", stt.ErrNoSpeech)
	}
	return tr, nil
}

// buildURL constructs the streaming endpoint URL for req.
func (p *Provider) buildURL(req stt.Request) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("interim_results", "false")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(req.Clip.SampleRate))
	q.Set("channels", strconv.Itoa(max(req.Clip.Channels, 1)))

	for _, kw := range req.Keywords {
		boost := kw.Boost
		if boost == 0 {
			boost = 1
		}
		// Deepgram keyword format: word:boost (e.g., "auscultation:2")
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Keyword, boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type result struct {
	stt.Transcript
	final bool
}

// parseDeepgramResponse returns (result, true) for Results messages and
// (zero, false) for everything else.
func parseDeepgramResponse(data []byte) (result, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return result{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return result{}, false
	}

	alt := resp.Channel.Alternatives[0]
	words := make([]stt.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, stt.WordDetail{
			Word:       w.Word,
			Start:      time.Duration(w.Start * float64(time.Second)),
			End:        time.Duration(w.End * float64(time.Second)),
			Confidence: w.Confidence,
		})
	}

	return result{
		Transcript: stt.Transcript{Text: alt.Transcript, Confidence: alt.Confidence, Words: words},
		final:      resp.IsFinal,
	}, true
}

// join concatenates segment texts and word lists; confidence is the mean of
// the segment confidences.
func join(segments []stt.Transcript) stt.Transcript {
	if len(segments) == 0 {
		return stt.Transcript{}
	}
	var (
		out   stt.Transcript
		texts = make([]string, 0, len(segments))
		sum   float64
	)
	for _, s := range segments {
		texts = append(texts, strings.TrimSpace(s.Text))
		out.Words = append(out.Words, s.Words...)
		sum += s.Confidence
	}
	out.Text = strings.Join(texts, " ")
	out.Confidence = sum / float64(len(segments))
	return out
}
