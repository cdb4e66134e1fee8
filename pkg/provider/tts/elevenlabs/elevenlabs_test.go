package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/medshadow/pkg/provider/tts"
)

func TestNew(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty apiKey")
	}
	if _, err := New("key", WithOutputFormat("mp3_44100_128")); err == nil {
		t.Error("expected error for non-PCM output format")
	}
	p, err := New("key", WithOutputFormat("pcm_24000"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != defaultModel {
		t.Errorf("model = %q, want %q", p.model, defaultModel)
	}
}

func TestStreamURL(t *testing.T) {
	p, _ := New("key", WithModel("eleven_turbo_v2"))
	got := p.streamURL("voice id")
	if !strings.HasPrefix(got, "wss://api.elevenlabs.io/v1/text-to-speech/voice%20id/stream-input?") {
		t.Errorf("streamURL = %q", got)
	}
	if !strings.Contains(got, "model_id=eleven_turbo_v2") || !strings.Contains(got, "output_format=pcm_16000") {
		t.Errorf("streamURL = %q missing query", got)
	}
}

func TestSynthesize(t *testing.T) {
	got := make(chan []map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := r.Context()
		var received []map[string]any
		for range 3 {
			_, msg, err := c.Read(ctx)
			if err != nil {
				return
			}
			var m map[string]any
			_ = json.Unmarshal(msg, &m)
			received = append(received, m)
		}
		got <- received
		for _, chunk := range [][]byte{{1, 0, 2, 0}, {3, 0}} {
			data, _ := json.Marshal(audioResponse{Audio: base64.StdEncoding.EncodeToString(chunk)})
			_ = c.Write(ctx, websocket.MessageText, data)
		}
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"isFinal":true}`))
		c.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	p, _ := New("secret", WithBaseURLs(srv.URL, srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clip, err := p.Synthesize(ctx, "Please lie down.", tts.VoiceProfile{ID: "rachel", SpeedFactor: 0.8})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(clip.PCM) != string([]byte{1, 0, 2, 0, 3, 0}) {
		t.Errorf("PCM = %v", clip.PCM)
	}
	if clip.SampleRate != 16000 || clip.Channels != 1 {
		t.Errorf("format = %s", clip.Format())
	}

	received := <-got
	if len(received) != 3 {
		t.Fatalf("server got %d messages, want 3", len(received))
	}
	if received[0]["xi_api_key"] != "secret" {
		t.Errorf("BOI = %v", received[0])
	}
	if vs, _ := received[0]["voice_settings"].(map[string]any); vs["speed"] != 0.8 {
		t.Errorf("voice_settings = %v", received[0]["voice_settings"])
	}
	if received[1]["text"] != "Please lie down. " || received[2]["text"] != "" {
		t.Errorf("text messages = %v, %v", received[1], received[2])
	}
}

func TestSynthesize_Validation(t *testing.T) {
	p, _ := New("key")
	if _, err := p.Synthesize(context.Background(), "hi", tts.VoiceProfile{}); err == nil {
		t.Error("expected error for missing voice ID")
	}
	if _, err := p.Synthesize(context.Background(), " ", tts.VoiceProfile{ID: "v"}); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" || r.Header.Get("xi-api-key") != "key" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Rachel","category":"premade","labels":{"accent":"american"}}]}`))
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURLs(srv.URL, srv.URL))
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "v1" || voices[0].Metadata["accent"] != "american" || voices[0].Metadata["category"] != "premade" {
		t.Errorf("voices = %+v", voices)
	}
}
