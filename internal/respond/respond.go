// Package respond writes the JSON envelope shared by every /api endpoint:
//
//	{"success": true,  "data": …}
//	{"success": false, "error": {"code": "…", "message": "…"}}
//
// Error codes are stable identifiers clients switch on; messages are for
// humans and may change.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes.
const (
	CodeNoToken            = "NO_TOKEN"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeDuplicateEntry     = "DUPLICATE_ENTRY"
	CodeServerError        = "SERVER_ERROR"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeEmailAlreadyExists = "EMAIL_ALREADY_EXISTS"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidScore       = "INVALID_SCORE"
	CodeScenarioNotFound   = "SCENARIO_NOT_FOUND"
	CodeWordNotFound       = "WORD_NOT_FOUND"
	CodeBookmarkNotFound   = "BOOKMARK_NOT_FOUND"
	CodeAlreadyBookmarked  = "ALREADY_BOOKMARKED"
	CodeInvalidID          = "INVALID_ID"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeAuthRateLimit      = "AUTH_RATE_LIMIT_EXCEEDED"
	CodeSpeechUnavailable  = "SPEECH_UNAVAILABLE"
	CodeNoSpeech           = "NO_SPEECH"
	CodeSpeechProvider     = "SPEECH_PROVIDER_ERROR"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeInvalidAudio       = "INVALID_AUDIO"
	CodeNotFound           = "NOT_FOUND"
)

// ErrorBody is the error member of a failure envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the body of every /api response.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// JSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func JSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("respond: encode body", "err", err)
		http.Error(w, `{"success":false}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// OK writes a success envelope with status.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data})
}

// Fail writes a failure envelope with status.
func Fail(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, Envelope{Error: &ErrorBody{Code: code, Message: message}})
}
