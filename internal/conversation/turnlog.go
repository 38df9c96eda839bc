package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/insurelab/termlife-ai-platform/internal/decision"
)

// TurnRecord is one processed turn, flattened for durable logging. The raw
// decision object rides along so the audit trail can reconstruct what the
// model extracted, requested, and reasoned, not just what the pipeline did
// with it.
type TurnRecord struct {
	SessionID   string             `json:"session_id"`
	Timestamp   time.Time          `json:"timestamp"`
	UserMessage string             `json:"user_message"`
	Reply       string             `json:"reply"`
	Mode        string             `json:"mode"`
	State       string             `json:"state"`
	Decision    *decision.Decision `json:"decision,omitempty"`
	Operations  []OperationResult  `json:"operations,omitempty"`
	DurationMS  int64              `json:"duration_ms"`
}

// TurnLog persists turn records for audit and offline analysis. Appends are
// best-effort from the pipeline's point of view.
type TurnLog interface {
	Append(ctx context.Context, rec TurnRecord) error
}

// FileTurnLog appends records as JSON lines to a single file. A mutex
// serializes writers so concurrent turns never interleave lines.
type FileTurnLog struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileTurnLog opens (creating if needed) the JSONL file at path.
func NewFileTurnLog(path string) (*FileTurnLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("turn log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open turn log: %w", err)
	}
	return &FileTurnLog{file: f}, nil
}

// Append writes one record as a JSON line.
func (l *FileTurnLog) Append(_ context.Context, rec TurnRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode turn record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("append turn record: %w", err)
	}
	return nil
}

// Close releases the underlying file.
func (l *FileTurnLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
