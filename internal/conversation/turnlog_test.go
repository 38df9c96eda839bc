package conversation

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurelab/termlife-ai-platform/internal/decision"
)

func TestFileTurnLogAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "turns.jsonl")
	log, err := NewFileTurnLog(path)
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(ctx, TurnRecord{
			SessionID:   "sess-1",
			Timestamp:   time.Now().UTC(),
			UserMessage: fmt.Sprintf("message %d", i),
			Reply:       "ok",
			State:       "onboarding",
			Decision:    &decision.Decision{Mode: decision.ModeConversational, Reply: "ok"},
		}))
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []TurnRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec TurnRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		lines = append(lines, rec)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 3)
	assert.Equal(t, "message 0", lines[0].UserMessage)
	assert.Equal(t, "message 2", lines[2].UserMessage)

	// The raw decision survives the round trip.
	require.NotNil(t, lines[1].Decision)
	assert.Equal(t, decision.ModeConversational, lines[1].Decision.Mode)
}

func TestFileTurnLogConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turns.jsonl")
	log, err := NewFileTurnLog(path)
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, log.Append(ctx, TurnRecord{
				SessionID:   fmt.Sprintf("sess-%d", i),
				UserMessage: "hello",
			}))
		}(i)
	}
	wg.Wait()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec TurnRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec), "concurrent writes must not interleave")
		count++
	}
	assert.Equal(t, writers, count)
}

func TestSQLTurnLogAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log := NewSQLTurnLog(db)
	mock.ExpectExec("INSERT INTO conversation_turns").
		WithArgs("sess-1", sqlmock.AnyArg(), "hi", "hello", "conversational", "onboarding",
			sqlmock.AnyArg(), sqlmock.AnyArg(), int64(42)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = log.Append(context.Background(), TurnRecord{
		SessionID:   "sess-1",
		Timestamp:   time.Now().UTC(),
		UserMessage: "hi",
		Reply:       "hello",
		Mode:        "conversational",
		State:       "onboarding",
		Decision:    &decision.Decision{Mode: decision.ModeConversational, Reply: "hello"},
		DurationMS:  42,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTurnLogEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS conversation_turns").
		WillReturnResult(sqlmock.NewResult(0, 0))

	log := NewSQLTurnLog(db)
	require.NoError(t, log.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTurnLogRecentTurns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"session_id", "created_at", "user_message", "reply", "mode", "state", "decision", "operations", "duration_ms",
	}).
		AddRow("sess-1", now, "second", "r2", "conversational", "onboarding",
			[]byte(`{"mode":"conversational","reply":"r2","reasoning":"greeting"}`), []byte(`[]`), int64(5)).
		AddRow("sess-1", now.Add(-time.Minute), "first", "r1", "conversational", "onboarding",
			nil, []byte(`[]`), int64(7))

	mock.ExpectQuery("SELECT session_id, created_at").
		WithArgs("sess-1", 10).
		WillReturnRows(rows)

	log := NewSQLTurnLog(db)
	recs, err := log.RecentTurns(context.Background(), "sess-1", 10)
	require.NoError(t, err)

	// Query returns newest first; RecentTurns flips to chronological order.
	require.Len(t, recs, 2)
	assert.Equal(t, "first", recs[0].UserMessage)
	assert.Nil(t, recs[0].Decision)
	assert.Equal(t, "second", recs[1].UserMessage)
	require.NotNil(t, recs[1].Decision)
	assert.Equal(t, "greeting", recs[1].Decision.Reasoning)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTurnLogNilDB(t *testing.T) {
	log := NewSQLTurnLog(nil)
	assert.NoError(t, log.EnsureSchema(context.Background()))
	assert.NoError(t, log.Append(context.Background(), TurnRecord{}))
	recs, err := log.RecentTurns(context.Background(), "x", 5)
	assert.NoError(t, err)
	assert.Nil(t, recs)
}
