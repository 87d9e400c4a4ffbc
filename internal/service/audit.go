package service

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkrylov/shortshare/internal/model"
)

// LogAppender is the slice of the repository the audit logger needs.
type LogAppender interface {
	AppendLog(ctx context.Context, entry *model.AccessLogEntry) error
}

const (
	defaultAuditQueueSize = 1024
	auditAppendTimeout    = 5 * time.Second
)

// AuditLogger appends access-log entries in the background. Appends are
// best-effort: when the queue is full the entry is dropped, and an append
// failure never reaches the resolution caller. Losing a log entry is
// tolerable, losing a counter increment is not.
type AuditLogger struct {
	sink     LogAppender
	queue    chan *model.AccessLogEntry
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	dropped  int64
}

func NewAuditLogger(sink LogAppender, queueSize int) *AuditLogger {
	if queueSize <= 0 {
		queueSize = defaultAuditQueueSize
	}

	a := &AuditLogger{
		sink:  sink,
		queue: make(chan *model.AccessLogEntry, queueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	go a.run()

	return a
}

// Record enqueues an entry without blocking. Drop-on-full.
func (a *AuditLogger) Record(entry *model.AccessLogEntry) {
	select {
	case <-a.stop:
		return
	default:
	}

	select {
	case a.queue <- entry:
	default:
		n := atomic.AddInt64(&a.dropped, 1)
		log.Printf("Audit queue full, dropped entry for %s (dropped total: %d)", entry.ShortKey, n)
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (a *AuditLogger) Dropped() int64 {
	return atomic.LoadInt64(&a.dropped)
}

func (a *AuditLogger) run() {
	for {
		select {
		case entry := <-a.queue:
			a.append(entry)
		case <-a.stop:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case entry := <-a.queue:
					a.append(entry)
				default:
					close(a.done)
					return
				}
			}
		}
	}
}

func (a *AuditLogger) append(entry *model.AccessLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), auditAppendTimeout)
	defer cancel()

	if err := a.sink.AppendLog(ctx, entry); err != nil {
		log.Printf("Failed to append access log for %s: %v", entry.ShortKey, err)
	}
}

// Shutdown stops the worker and waits for the queue to drain, bounded by ctx.
func (a *AuditLogger) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		close(a.stop)
	})

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
