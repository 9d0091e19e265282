package activity

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/printshop/homepage"
)

// DefaultQueueSize is the recorder buffer used when none is given.
const DefaultQueueSize = 256

type saver interface {
	Save(ctx context.Context, a homepage.Activity) error
}

// Recorder is a homepage.ActivitySink that writes entries on a background
// goroutine. Record never blocks: a full queue drops the entry, and write
// errors are logged and swallowed.
type Recorder struct {
	store  saver
	logger echo.Logger
	queue  chan homepage.Activity

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewRecorder starts a recorder writing to store.
func NewRecorder(store saver, logger echo.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	r := &Recorder{
		store:  store,
		logger: logger,
		queue:  make(chan homepage.Activity, queueSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record enqueues a.
func (r *Recorder) Record(a homepage.Activity) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- a:
	default:
		r.logger.Warnf("activity queue full, dropping %s %s %s", a.Action, a.ResourceType, a.ResourceID)
	}
}

// Close stops accepting entries and waits for queued ones to be written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for a := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.Save(ctx, a); err != nil {
			r.logger.Errorf("activity record error: %v", err)
		}
		cancel()
	}
}
