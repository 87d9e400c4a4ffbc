package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkrylov/shortshare/internal/model"
)

type mockAppender struct {
	mu      sync.Mutex
	entries []*model.AccessLogEntry
	block   chan struct{} // when set, AppendLog waits on it
	err     error
}

func (m *mockAppender) AppendLog(ctx context.Context, entry *model.AccessLogEntry) error {
	if m.block != nil {
		<-m.block
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAppender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func entry(key string) *model.AccessLogEntry {
	return &model.AccessLogEntry{
		ID:        key + "-id",
		ShortKey:  key,
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent",
		CreatedAt: time.Now(),
	}
}

func TestAuditLogger_AppendsInBackground(t *testing.T) {
	sink := &mockAppender{}
	logger := NewAuditLogger(sink, 16)

	for i := 0; i < 5; i++ {
		logger.Record(entry("abc"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := logger.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if sink.count() != 5 {
		t.Errorf("appended %d entries, want 5", sink.count())
	}
}

func TestAuditLogger_DropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := &mockAppender{block: block}
	logger := NewAuditLogger(sink, 2)

	// One entry occupies the worker, two fill the queue, the rest drop.
	for i := 0; i < 10; i++ {
		logger.Record(entry("abc"))
	}

	if logger.Dropped() == 0 {
		t.Error("expected drops once the queue was full")
	}

	close(block)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := logger.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if got := int64(sink.count()) + logger.Dropped(); got != 10 {
		t.Errorf("appended+dropped = %d, want 10", got)
	}
}

func TestAuditLogger_AppendFailureIsSwallowed(t *testing.T) {
	sink := &mockAppender{err: errors.New("log table gone")}
	logger := NewAuditLogger(sink, 16)

	// Record never surfaces the sink failure.
	logger.Record(entry("abc"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := logger.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestAuditLogger_RecordAfterShutdown(t *testing.T) {
	sink := &mockAppender{}
	logger := NewAuditLogger(sink, 16)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := logger.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	// Must not panic or block.
	logger.Record(entry("late"))

	if sink.count() != 0 {
		t.Errorf("entry recorded after shutdown, count = %d", sink.count())
	}
}

func TestAuditLogger_ShutdownTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	sink := &mockAppender{block: block}
	logger := NewAuditLogger(sink, 16)
	logger.Record(entry("abc"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := logger.Shutdown(ctx); err == nil {
		t.Error("Shutdown() with a stuck sink should return the context error")
	}
}
