// Package feedback keeps an append-only journal of shadowing attempts.
// Each evaluated attempt becomes one JSON line, which keeps the transcript
// and per-word outcome around for later analysis without widening the
// progress table.
package feedback

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Attempt sources.
const (
	SourceText  = "text"
	SourceAudio = "audio"
)

// Attempt is a single journal entry.
type Attempt struct {
	Timestamp    time.Time `json:"timestamp"`
	UserID       int64     `json:"user_id"`
	ScenarioID   int64     `json:"scenario_id"`
	Source       string    `json:"source"`
	Transcript   string    `json:"transcript"`
	Score        int       `json:"score"`
	MatchedWords int       `json:"matched_words"`
	TotalWords   int       `json:"total_words"`
	WER          float64   `json:"wer"`
	Missed       []string  `json:"missed,omitempty"`
	IsNewRecord  bool      `json:"is_new_record"`
}

// Journal records attempts.
type Journal interface {
	Record(a Attempt) error
}

// Compile-time interface check.
var _ Journal = (*FileStore)(nil)

// FileStore persists attempts as JSON lines in a local file.
// Safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileStore creates a FileStore that writes to path. The file is
// created on the first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the journal file path.
func (fs *FileStore) Path() string { return fs.path }

// Record appends a to the journal. A zero Timestamp is set to the current
// UTC time.
func (fs *FileStore) Record(a Attempt) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = fs.now().UTC()
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("feedback: marshal: %w", err)
	}
	data = append(data, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("feedback: write: %w", err)
	}
	return nil
}

// ReadAttempts decodes every entry of a journal. Blank lines are skipped.
func ReadAttempts(r io.Reader) ([]Attempt, error) {
	var out []Attempt
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var a Attempt
		if err := json.Unmarshal(sc.Bytes(), &a); err != nil {
			return out, fmt.Errorf("feedback: line %d: %w", line, err)
		}
		out = append(out, a)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("feedback: read: %w", err)
	}
	return out, nil
}

// Nop discards every attempt.
type Nop struct{}

// Record implements [Journal].
func (Nop) Record(Attempt) error { return nil }
