package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/medshadow/internal/api"
	"github.com/MrWong99/medshadow/internal/auth"
	"github.com/MrWong99/medshadow/internal/evaluation"
	"github.com/MrWong99/medshadow/internal/observe"
	"github.com/MrWong99/medshadow/internal/respond"
	"github.com/MrWong99/medshadow/pkg/audio"
	"github.com/MrWong99/medshadow/pkg/provider/stt"
	sttmock "github.com/MrWong99/medshadow/pkg/provider/stt/mock"
	ttsmock "github.com/MrWong99/medshadow/pkg/provider/tts/mock"
	"github.com/MrWong99/medshadow/pkg/store/memstore"
	"github.com/MrWong99/medshadow/pkg/store/storetest"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   respond.ErrorBody `json:"error"`
}

type testServer struct {
	mux    *http.ServeMux
	store  *memstore.Store
	issuer *auth.Issuer
	stt    *sttmock.Provider
	tts    *ttsmock.Provider
}

func newTestServer(t *testing.T, opts ...api.Option) *testServer {
	t.Helper()
	st := memstore.New()
	storetest.Seed(t, st)

	issuer, err := auth.NewIssuer(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	recogniser := &sttmock.Provider{Result: stt.Transcript{Text: "please relax while I check your blood pressure", Confidence: 0.9}}
	synth := &ttsmock.Provider{}
	eval := evaluation.New(st, st,
		evaluation.WithSTT("mock", recogniser),
		evaluation.WithTTS("mock", synth),
		evaluation.WithMetrics(m),
	)

	mux := http.NewServeMux()
	api.New(st, issuer, eval, append([]api.Option{api.WithMetrics(m)}, opts...)...).Register(mux)
	return &testServer{mux: mux, store: st, issuer: issuer, stt: recogniser, tts: synth}
}

// token registers email directly in the store and returns a bearer token.
func (ts *testServer) token(t *testing.T, email string) string {
	t.Helper()
	u, err := ts.store.CreateUser(context.Background(), email)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := ts.issuer.Issue(u.ID, u.Email)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doJSON(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return ts.do(t, method, path, token, r, "application/json")
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Errorf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	env := decode(t, rec)
	if env.Success {
		t.Error("success = true on error response")
	}
	if env.Error.Code != code {
		t.Errorf("code = %q, want %q", env.Error.Code, code)
	}
}

func data[T any](t *testing.T, rec *httptest.ResponseRecorder, status int) T {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	env := decode(t, rec)
	if !env.Success {
		t.Fatalf("success = false: %+v", env.Error)
	}
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

func wavBody(t *testing.T) []byte {
	t.Helper()
	return audio.EncodeWAV(audio.Clip{PCM: make([]byte, 48000*2*2/10), SampleRate: 48000, Channels: 2})
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	type session struct {
		UserID int64  `json:"userId"`
		Email  string `json:"email"`
		Token  string `json:"token"`
	}

	reg := data[session](t, ts.doJSON(t, "POST", "/api/auth/register", "", `{"email":"nurse@example.com"}`), http.StatusCreated)
	if reg.UserID == 0 || reg.Email != "nurse@example.com" || reg.Token == "" {
		t.Fatalf("register = %+v", reg)
	}
	claims, err := ts.issuer.Verify(reg.Token)
	if err != nil || claims.UserID != reg.UserID {
		t.Fatalf("Verify = %+v, %v", claims, err)
	}

	login := data[session](t, ts.doJSON(t, "POST", "/api/auth/login", "", `{"email":"nurse@example.com"}`), http.StatusOK)
	if login.UserID != reg.UserID {
		t.Errorf("login user = %d, want %d", login.UserID, reg.UserID)
	}

	expectError(t, ts.doJSON(t, "POST", "/api/auth/register", "", `{"email":"nurse@example.com"}`), http.StatusConflict, respond.CodeEmailAlreadyExists)
	expectError(t, ts.doJSON(t, "POST", "/api/auth/login", "", `{"email":"doctor@example.com"}`), http.StatusNotFound, respond.CodeUserNotFound)
}

func TestAuthValidation(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"register empty email", "/api/auth/register", `{"email":""}`, http.StatusBadRequest, respond.CodeInvalidEmail},
		{"register no at sign", "/api/auth/register", `{"email":"nurse"}`, http.StatusBadRequest, respond.CodeInvalidEmail},
		{"login missing email", "/api/auth/login", `{}`, http.StatusBadRequest, respond.CodeInvalidEmail},
		{"malformed json", "/api/auth/register", `{"email":`, http.StatusBadRequest, respond.CodeInvalidInput},
		{"empty body", "/api/auth/login", ``, http.StatusBadRequest, respond.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, ts.doJSON(t, "POST", tt.path, "", tt.body), tt.status, tt.code)
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	routes := []struct{ method, path string }{
		{"GET", "/api/scenarios"},
		{"GET", "/api/scenarios/1"},
		{"GET", "/api/scenarios/1/audio"},
		{"POST", "/api/scenarios/1/evaluate"},
		{"POST", "/api/scenarios/1/evaluate/audio"},
		{"POST", "/api/scoring/preview"},
		{"GET", "/api/progress"},
		{"POST", "/api/progress"},
		{"GET", "/api/bookmarks"},
		{"POST", "/api/bookmarks"},
		{"DELETE", "/api/bookmarks/1"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			expectError(t, ts.doJSON(t, rt.method, rt.path, "", ""), http.StatusUnauthorized, respond.CodeNoToken)
		})
	}

	expectError(t, ts.doJSON(t, "GET", "/api/scenarios", "not-a-jwt", ""), http.StatusUnauthorized, respond.CodeInvalidToken)
}

func TestUnknownEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	expectError(t, ts.doJSON(t, "GET", "/api/nothing-here", "", ""), http.StatusNotFound, respond.CodeNotFound)
}

func TestScenarios(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	tok := ts.token(t, "nurse@example.com")

	type summary struct {
		ID        int64 `json:"id"`
		BestScore *int  `json:"bestScore"`
		Attempted bool  `json:"attempted"`
	}
	list := data[struct {
		Scenarios []summary `json:"scenarios"`
	}](t, ts.doJSON(t, "GET", "/api/scenarios", tok, ""), http.StatusOK)
	if len(list.Scenarios) != len(storetest.Scenarios) {
		t.Fatalf("got %d scenarios, want %d", len(list.Scenarios), len(storetest.Scenarios))
	}
	if list.Scenarios[0].BestScore != nil || list.Scenarios[0].Attempted {
		t.Errorf("unattempted scenario = %+v", list.Scenarios[0])
	}

	type word struct {
		ID       int64 `json:"id"`
		Position int   `json:"position"`
	}
	detail := data[struct {
		ID         int64  `json:"id"`
		SentenceEn string `json:"sentenceEn"`
		Words      []word `json:"words"`
	}](t, ts.doJSON(t, "GET", "/api/scenarios/2", tok, ""), http.StatusOK)
	if detail.SentenceEn != storetest.Scenarios[1].SentenceEn {
		t.Errorf("sentence = %q", detail.SentenceEn)
	}
	if len(detail.Words) != 2 || detail.Words[0].Position != 1 || detail.Words[0].ID != 20 {
		t.Errorf("words = %+v, want position order", detail.Words)
	}

	expectError(t, ts.doJSON(t, "GET", "/api/scenarios/99", tok, ""), http.StatusNotFound, respond.CodeScenarioNotFound)
	expectError(t, ts.doJSON(t, "GET", "/api/scenarios/abc", tok, ""), http.StatusBadRequest, respond.CodeInvalidID)
	expectError(t, ts.doJSON(t, "GET", "/api/scenarios/-1", tok, ""), http.StatusBadRequest, respond.CodeInvalidID)
}

func TestScenarioAudio(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	tok := ts.token(t, "nurse@example.com")

	rec := ts.doJSON(t, "GET", "/api/scenarios/1/audio", tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q", ct)
	}
	clip, err := audio.ParseWAV(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if clip.Empty() {
		t.Error("empty clip")
	}
	if calls := ts.tts.Calls(); len(calls) != 1 || calls[0].Text != storetest.Scenarios[0].SentenceEn {
		t.Errorf("tts calls = %+v", calls)
	}

	expectError(t, ts.doJSON(t, "GET", "/api/scenarios/99/audio", tok, ""), http.StatusNotFound, respond.CodeScenarioNotFound)

	ts.tts.SynthesizeErr = errors.New("quota exceeded")
	expectError(t, ts.doJSON(t, "GET", "/api/scenarios/1/audio", tok, ""), http.StatusBadGateway, respond.CodeSpeechProvider)
}

func TestSpeechUnavailable(t *testing.T) {
	t.Parallel()
	st := memstore.New()
	storetest.Seed(t, st)
	issuer, err := auth.NewIssuer(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.New(st, issuer, evaluation.New(st, st)).Register(mux)

	u, _ := st.CreateUser(context.Background(), "nurse@example.com")
	tok, _ := issuer.Issue(u.ID, u.Email)

	for _, path := range []string{"/api/scenarios/1/audio", "/api/scenarios/1/evaluate/audio"} {
		method := "GET"
		if strings.HasSuffix(path, "evaluate/audio") {
			method = "POST"
		}
		req := httptest.NewRequest(method, path, bytes.NewReader(wavBody(t)))
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		expectError(t, rec, http.StatusServiceUnavailable, respond.CodeSpeechUnavailable)
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	tok := ts.token(t, "nurse@example.com")

	type report struct {
		Score struct {
			Score      int `json:"score"`
			MatchCount int `json:"matchCount"`
		} `json:"score"`
		ScenarioID int64  `json:"scenarioId"`
		Source     string `json:"source"`
		Progress   struct {
			BestScore    int  `json:"bestScore"`
			AttemptCount int  `json:"attemptCount"`
			IsNewRecord  bool `json:"isNewRecord"`
		} `json:"progress"`
	}

	first := data[report](t, ts.doJSON(t, "POST", "/api/scenarios/2/evaluate", tok,
		`{"transcript":"Please relax while I check your blood pressure."}`), http.StatusOK)
	if first.Score.Score != 100 || first.Source != "text" || !first.Progress.IsNewRecord {
		t.Errorf("first = %+v", first)
	}

	second := data[report](t, ts.doJSON(t, "POST", "/api/scenarios/2/evaluate", tok,
		`{"transcript":"relax"}`), http.StatusOK)
	if second.Progress.IsNewRecord || second.Progress.BestScore != 100 || second.Progress.AttemptCount != 2 {
		t.Errorf("second progress = %+v", second.Progress)
	}

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing transcript", "/api/scenarios/2/evaluate", `{}`, http.StatusBadRequest, respond.CodeInvalidInput},
		{"unknown scenario", "/api/scenarios/99/evaluate", `{"transcript":"hello"}`, http.StatusNotFound, respond.CodeScenarioNotFound},
		{"bad id", "/api/scenarios/zero/evaluate", `{"transcript":"hello"}`, http.StatusBadRequest, respond.CodeInvalidID},
		{"invalid utf-8", "/api/scenarios/2/evaluate", "{\"transcript\":\"bad \xff bytes\"}", http.StatusBadRequest, respond.CodeInvalidInput},
		{"invalid utf-8 preview", "/api/scoring/preview", "{\"reference\":\"a\",\"transcript\":\"\xc3\"}", http.StatusBadRequest, respond.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, ts.doJSON(t, "POST", tt.path, tok, tt.body), tt.status, tt.code)
		})
	}
}

func TestEvaluateAudio(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	tok := ts.token(t, "nurse@example.com")

	type report struct {
		Source     string  `json:"source"`
		Transcript string  `json:"transcript"`
		Confidence float64 `json:"confidence"`
		Score      struct {
			Score int `json:"score"`
		} `json:"score"`
	}

	raw := data[report](t, ts.do(t, "POST", "/api/scenarios/2/evaluate/audio", tok, bytes.NewReader(wavBody(t)), "audio/wav"), http.StatusOK)
	if raw.Source != "audio" || raw.Score.Score != 100 || raw.Confidence != 0.9 {
		t.Errorf("raw upload = %+v", raw)
	}
	calls := ts.stt.Calls()
	if len(calls) != 1 || calls[0].Clip.Format() != audio.STTFormat {
		t.Fatalf("stt calls = %+v", calls)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", "attempt.wav")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(wavBody(t))
	_ = mw.Close()
	form := data[report](t, ts.do(t, "POST", "/api/scenarios/2/evaluate/audio", tok, &buf, mw.FormDataContentType()), http.StatusOK)
	if form.Transcript == "" {
		t.Errorf("multipart upload = %+v", form)
	}
}

func TestEvaluateAudioErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opts   []api.Option
		sttErr error
		text   string
		body   func(t *testing.T) []byte
		status int
		code   string
	}{
		{
			name:   "not a wav",
			body:   func(*testing.T) []byte { return []byte("definitely not audio") },
			status: http.StatusBadRequest,
			code:   respond.CodeInvalidAudio,
		},
		{
			name: "one hertz header",
			body: func(*testing.T) []byte {
				return audio.EncodeWAV(audio.Clip{PCM: make([]byte, 2048), SampleRate: 1, Channels: 1})
			},
			status: http.StatusBadRequest,
			code:   respond.CodeInvalidAudio,
		},
		{
			name:   "too large",
			opts:   []api.Option{api.WithMaxUploadBytes(64)},
			body:   wavBody,
			status: http.StatusRequestEntityTooLarge,
			code:   respond.CodePayloadTooLarge,
		},
		{
			name:   "silence",
			text:   "   ",
			body:   wavBody,
			status: http.StatusUnprocessableEntity,
			code:   respond.CodeNoSpeech,
		},
		{
			name:   "provider rejects",
			sttErr: stt.ErrNoSpeech,
			body:   wavBody,
			status: http.StatusUnprocessableEntity,
			code:   respond.CodeNoSpeech,
		},
		{
			name:   "provider down",
			sttErr: errors.New("connection refused"),
			body:   wavBody,
			status: http.StatusBadGateway,
			code:   respond.CodeSpeechProvider,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t, tt.opts...)
			tok := ts.token(t, "nurse@example.com")
			ts.stt.Err = tt.sttErr
			if tt.text != "" {
				ts.stt.Result = stt.Transcript{Text: tt.text}
			}
			rec := ts.do(t, "POST", "/api/scenarios/2/evaluate/audio", tok, bytes.NewReader(tt.body(t)), "audio/wav")
			expectError(t, rec, tt.status, tt.code)
		})
	}
}

func TestScoringPreview(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	tok := ts.token(t, "nurse@example.com")

	type assessment struct {
		Score struct {
			Score int `json:"score"`
		} `json:"score"`
		Diff struct {
			Missing []string `json:"missingWords"`
		} `json:"diff"`
	}
	a := data[assessment](t, ts.doJSON(t, "POST", "/api/scoring/preview", tok,
		`{"reference":"take a deep breath","transcript":"take a breath"}`), http.StatusOK)
	if a.Score.Score != 75 || len(a.Diff.Missing) != 1 || a.Diff.Missing[0] != "deep" {
		t.Errorf("assessment = %+v", a)
	}

	expectError(t, ts.doJSON(t, "POST", "/api/scoring/preview", tok, `{"transcript":"x"}`), http.StatusBadRequest, respond.CodeInvalidInput)

	list := data[struct {
		Progress []json.RawMessage `json:"progress"`
	}](t, ts.doJSON(t, "GET", "/api/progress", tok, ""), http.StatusOK)
	if len(list.Progress) != 0 {
		t.Errorf("preview recorded progress: %d rows", len(list.Progress))
	}
}

func TestProgress(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	tok := ts.token(t, "nurse@example.com")

	type update struct {
		BestScore    int  `json:"bestScore"`
		AttemptCount int  `json:"attemptCount"`
		IsNewRecord  bool `json:"isNewRecord"`
	}
	first := data[update](t, ts.doJSON(t, "POST", "/api/progress", tok, `{"scenarioId":1,"score":60}`), http.StatusOK)
	if !first.IsNewRecord || first.BestScore != 60 || first.AttemptCount != 1 {
		t.Errorf("first = %+v", first)
	}
	lower := data[update](t, ts.doJSON(t, "POST", "/api/progress", tok, `{"scenarioId":1,"score":40}`), http.StatusOK)
	if lower.IsNewRecord || lower.BestScore != 60 || lower.AttemptCount != 2 {
		t.Errorf("lower = %+v", lower)
	}

	type row struct {
		ScenarioID    int64  `json:"scenarioId"`
		ScenarioTitle string `json:"scenarioTitle"`
		BestScore     int    `json:"bestScore"`
	}
	list := data[struct {
		Progress []row `json:"progress"`
	}](t, ts.doJSON(t, "GET", "/api/progress", tok, ""), http.StatusOK)
	if len(list.Progress) != 1 || list.Progress[0].ScenarioTitle != storetest.Scenarios[0].Title || list.Progress[0].BestScore != 60 {
		t.Errorf("progress = %+v", list.Progress)
	}

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"missing scenario", `{"score":50}`, http.StatusBadRequest, respond.CodeInvalidInput},
		{"zero scenario", `{"scenarioId":0,"score":50}`, http.StatusBadRequest, respond.CodeInvalidInput},
		{"missing score", `{"scenarioId":1}`, http.StatusBadRequest, respond.CodeInvalidInput},
		{"negative score", `{"scenarioId":1,"score":-1}`, http.StatusBadRequest, respond.CodeInvalidScore},
		{"score above 100", `{"scenarioId":1,"score":101}`, http.StatusBadRequest, respond.CodeInvalidScore},
		{"fractional score", `{"scenarioId":1,"score":50.5}`, http.StatusBadRequest, respond.CodeInvalidScore},
		{"unknown scenario", `{"scenarioId":99,"score":50}`, http.StatusNotFound, respond.CodeScenarioNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, ts.doJSON(t, "POST", "/api/progress", tok, tt.body), tt.status, tt.code)
		})
	}
}

func TestBookmarks(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	tok := ts.token(t, "nurse@example.com")
	other := ts.token(t, "doctor@example.com")

	type bookmark struct {
		ID              int64  `json:"id"`
		WordID          int64  `json:"wordId"`
		Word            string `json:"word"`
		ScenarioID      int64  `json:"scenarioId"`
		ExampleSentence string `json:"exampleSentence"`
	}
	bm := data[bookmark](t, ts.doJSON(t, "POST", "/api/bookmarks", tok, `{"wordId":20,"scenarioId":2}`), http.StatusCreated)
	if bm.ID == 0 || bm.Word != "blood pressure" || bm.ExampleSentence != storetest.Scenarios[1].SentenceEn {
		t.Errorf("bookmark = %+v", bm)
	}

	list := data[struct {
		Bookmarks []bookmark `json:"bookmarks"`
	}](t, ts.doJSON(t, "GET", "/api/bookmarks", tok, ""), http.StatusOK)
	if len(list.Bookmarks) != 1 || list.Bookmarks[0].ID != bm.ID {
		t.Errorf("bookmarks = %+v", list.Bookmarks)
	}

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"duplicate", `{"wordId":20,"scenarioId":2}`, http.StatusConflict, respond.CodeAlreadyBookmarked},
		{"missing word", `{"scenarioId":2}`, http.StatusBadRequest, respond.CodeInvalidInput},
		{"missing scenario", `{"wordId":20}`, http.StatusBadRequest, respond.CodeInvalidInput},
		{"unknown word", `{"wordId":999,"scenarioId":2}`, http.StatusNotFound, respond.CodeWordNotFound},
		{"unknown scenario", `{"wordId":20,"scenarioId":99}`, http.StatusNotFound, respond.CodeScenarioNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, ts.doJSON(t, "POST", "/api/bookmarks", tok, tt.body), tt.status, tt.code)
		})
	}

	path := "/api/bookmarks/" + jsonID(bm.ID)
	expectError(t, ts.doJSON(t, "DELETE", path, other, ""), http.StatusNotFound, respond.CodeBookmarkNotFound)
	expectError(t, ts.doJSON(t, "DELETE", "/api/bookmarks/x", tok, ""), http.StatusBadRequest, respond.CodeInvalidID)

	del := data[struct {
		ID      int64 `json:"id"`
		Deleted bool  `json:"deleted"`
	}](t, ts.doJSON(t, "DELETE", path, tok, ""), http.StatusOK)
	if del.ID != bm.ID || !del.Deleted {
		t.Errorf("delete = %+v", del)
	}
	expectError(t, ts.doJSON(t, "DELETE", path, tok, ""), http.StatusNotFound, respond.CodeBookmarkNotFound)
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
