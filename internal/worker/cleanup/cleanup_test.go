package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hitoshi/lunchplan/internal/week"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// mockExecutor はExecutorインターフェースのモック実装。
type mockExecutor struct {
	execCalled bool
	query      string
	args       []any
	result     sql.Result
	err        error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	m.execCalled = true
	m.query = query
	m.args = args
	return m.result, m.err
}

type recordingMetrics struct {
	deleted []int64
}

func (m *recordingMetrics) RecordStatusUpsert(string, int)      {}
func (m *recordingMetrics) RecordStatusClear(int64)             {}
func (m *recordingMetrics) RecordVisibilityQuery(string)        {}
func (m *recordingMetrics) RecordHTTPStatus(int)                {}
func (m *recordingMetrics) RecordRequestDuration(time.Duration) {}
func (m *recordingMetrics) RecordCleanupDeleted(n int64)        { m.deleted = append(m.deleted, n) }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// 2026-10-14（水）は 2026-W42
func testCalendar() *week.Calendar {
	return week.NewCalendar(clockwork.NewFakeClockAt(time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)), time.UTC)
}

func TestNewCleanupJob_DefaultRetention(t *testing.T) {
	job := NewCleanupJob(&mockExecutor{}, testCalendar(), nil, nil, 0)

	if job.RetentionWeeks != DefaultRetentionWeeks {
		t.Errorf("RetentionWeeks = %d, want %d", job.RetentionWeeks, DefaultRetentionWeeks)
	}
}

func TestCleanupJob_Cutoff(t *testing.T) {
	tests := []struct {
		retention int
		want      string
	}{
		{1, "2026-W41"},
		{26, "2026-W16"},
		{52, "2025-W42"},
	}
	for _, tt := range tests {
		job := NewCleanupJob(&mockExecutor{}, testCalendar(), nil, nil, tt.retention)
		if got := job.Cutoff().String(); got != tt.want {
			t.Errorf("retention %d: Cutoff = %s, want %s", tt.retention, got, tt.want)
		}
	}
}

func TestCleanupJob_Run_ExecutesDeleteQuery(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 5}}
	collector := &recordingMetrics{}
	job := NewCleanupJob(mock, testCalendar(), collector, newTestLogger(&buf), 26)

	deleted, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if deleted != 5 {
		t.Errorf("deleted = %d, want 5", deleted)
	}
	if !strings.Contains(mock.query, "DELETE FROM day_statuses") || !strings.Contains(mock.query, "iso_week <") {
		t.Errorf("unexpected query: %s", mock.query)
	}
	if len(mock.args) != 1 || mock.args[0] != "2026-W16" {
		t.Errorf("args = %v, want [2026-W16]", mock.args)
	}
	if len(collector.deleted) != 1 || collector.deleted[0] != 5 {
		t.Errorf("metrics = %v, want [5]", collector.deleted)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}
	if entry["deleted_count"] != float64(5) || entry["cutoff_week"] != "2026-W16" {
		t.Errorf("log entry = %v", entry)
	}
}

func TestCleanupJob_Run_NothingToDelete(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 0}}
	job := NewCleanupJob(mock, testCalendar(), nil, newTestLogger(&buf), 26)

	deleted, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}

func TestCleanupJob_Run_DBError(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{err: errors.New("connection refused")}
	collector := &recordingMetrics{}
	job := NewCleanupJob(mock, testCalendar(), collector, newTestLogger(&buf), 26)

	_, err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("error should be logged: %s", buf.String())
	}
	if len(collector.deleted) != 0 {
		t.Error("metrics must not be recorded on failure")
	}
}

// --- Scheduler ---

type signalRunner struct {
	ran chan struct{}
}

func (r *signalRunner) Run(ctx context.Context) (int64, error) {
	select {
	case r.ran <- struct{}{}:
	default:
	}
	return 0, nil
}

func TestScheduler_RunsImmediatelyAndStops(t *testing.T) {
	runner := &signalRunner{ran: make(chan struct{}, 1)}
	s := NewScheduler(runner, time.Hour, nil, slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-runner.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job should run immediately after start")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
