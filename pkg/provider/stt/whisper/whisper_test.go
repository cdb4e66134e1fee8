package whisper_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/medshadow/pkg/audio"
	"github.com/MrWong99/medshadow/pkg/provider/stt"
	"github.com/MrWong99/medshadow/pkg/provider/stt/whisper"
)

// ---- helpers ----------------------------------------------------------------

type captured struct {
	language string
	prompt   string
	model    string
	clip     audio.Clip
}

// newMockServer answers POST /inference with responseText and records the
// form fields of the last request.
func newMockServer(t *testing.T, responseText string, last *atomic.Pointer[captured]) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		clip, err := audio.ParseWAV(data)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if last != nil {
			last.Store(&captured{
				language: r.FormValue("language"),
				prompt:   r.FormValue("prompt"),
				model:    r.FormValue("model"),
				clip:     clip,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": responseText})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func speechClip() audio.Clip {
	return audio.Clip{PCM: make([]byte, 3200), SampleRate: 16000, Channels: 1}
}

// ---- tests ------------------------------------------------------------------

func TestNew_RequiresURL(t *testing.T) {
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}
}

func TestTranscribe(t *testing.T) {
	var last atomic.Pointer[captured]
	srv := newMockServer(t, "  The patient is stable.  ", &last)

	p, err := whisper.New(srv.URL+"/", whisper.WithModel("base.en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tr, err := p.Transcribe(context.Background(), stt.Request{
		Clip:     speechClip(),
		Language: "en-US",
		Keywords: []stt.KeywordBoost{{Keyword: "stethoscope"}, {Keyword: "abdomen"}},
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "The patient is stable." {
		t.Errorf("Text = %q", tr.Text)
	}

	got := last.Load()
	if got == nil {
		t.Fatal("server saw no request")
	}
	if got.language != "en" {
		t.Errorf("language = %q, want en", got.language)
	}
	if got.prompt != "stethoscope, abdomen" {
		t.Errorf("prompt = %q", got.prompt)
	}
	if got.model != "base.en" {
		t.Errorf("model = %q, want base.en", got.model)
	}
	if got.clip.SampleRate != 16000 || len(got.clip.PCM) != 3200 {
		t.Errorf("uploaded clip = %dHz %d bytes", got.clip.SampleRate, len(got.clip.PCM))
	}
}

func TestTranscribe_NoSpeech(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "blank audio marker", text: "[BLANK_AUDIO]"},
		{name: "silence marker", text: " (silence) "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newMockServer(t, tt.text, nil)
			p, _ := whisper.New(srv.URL)
			_, err := p.Transcribe(context.Background(), stt.Request{Clip: speechClip()})
			if !errors.Is(err, stt.ErrNoSpeech) {
				t.Errorf("error = %v, want ErrNoSpeech", err)
			}
		})
	}

	t.Run("empty clip skips server", func(t *testing.T) {
		var last atomic.Pointer[captured]
		srv := newMockServer(t, "hello", &last)
		p, _ := whisper.New(srv.URL)
		_, err := p.Transcribe(context.Background(), stt.Request{})
		if !errors.Is(err, stt.ErrNoSpeech) {
			t.Errorf("error = %v, want ErrNoSpeech", err)
		}
		if last.Load() != nil {
			t.Error("server was called for an empty clip")
		}
	})
}

func TestTranscribe_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := whisper.New(srv.URL)
	_, err := p.Transcribe(context.Background(), stt.Request{Clip: speechClip()})
	if err == nil {
		t.Fatal("expected error on HTTP 500")
	}
	if errors.Is(err, stt.ErrNoSpeech) {
		t.Error("server failure must not be reported as no speech")
	}
}
