// Package autosave bridges the in-memory session runtime and the durable
// attempt store. It is the only writer between the two: periodic and
// debounced saves push state out, and Resume reconciles the two sources when
// a session opens.
package autosave

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prepdesk/prepdesk/internal/attempt"
)

// Snapshotter is what the coordinator needs from a session runtime.
type Snapshotter interface {
	// Snapshot returns the serialized session state and a copy of the local
	// answer map.
	Snapshot() ([]byte, map[string]string)
	// AttemptID is empty until the attempt is lazily created.
	AttemptID() string
}

type Coordinator struct {
	store   attempt.Store
	backups *BackupCache
	userID  string
	testID  string
	src     Snapshotter

	interval time.Duration
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	done    chan struct{}
}

func NewCoordinator(store attempt.Store, backups *BackupCache, userID, testID string, src Snapshotter, interval, debounce time.Duration) *Coordinator {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Coordinator{
		store:    store,
		backups:  backups,
		userID:   userID,
		testID:   testID,
		src:      src,
		interval: interval,
		debounce: debounce,
		done:     make(chan struct{}),
	}
}

// Start launches the periodic save loop. It runs until Stop.
func (c *Coordinator) Start() {
	go func() {
		t := time.NewTicker(c.interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				c.flushDurable(context.Background())
			case <-c.done:
				return
			}
		}
	}()
}

// Notify schedules a debounced save. Rapid edits coalesce into one write;
// each notification pushes the deadline out again.
func (c *Coordinator) Notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.timer != nil {
		c.timer.Reset(c.debounce)
		return
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		c.timer = nil
		stopped := c.stopped
		c.mu.Unlock()
		if !stopped {
			c.flushDurable(context.Background())
		}
	})
}

// flushDurable writes the current snapshot to the attempt store. Failures are
// logged, never surfaced: the next debounce or interval tick retries, and the
// ephemeral backup is the safety net.
func (c *Coordinator) flushDurable(ctx context.Context) {
	attemptID := c.src.AttemptID()
	if attemptID == "" {
		// Nothing durable exists yet; the attempt is created on first module
		// start.
		return
	}
	state, answers := c.src.Snapshot()
	if len(answers) > 0 {
		if _, err := c.store.PatchAnswers(ctx, attemptID, answers); err != nil {
			log.Printf("autosave: patch answers for %s: %v", attemptID, err)
			return
		}
	}
	if len(state) > 0 {
		if err := c.store.SaveSession(ctx, attemptID, state); err != nil {
			log.Printf("autosave: save session for %s: %v", attemptID, err)
		}
	}
}

// Stop cancels the timers and performs the close-time flush: ephemeral backup
// first (cannot fail), then a best-effort durable write.
func (c *Coordinator) Stop(ctx context.Context) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	close(c.done)
	c.mu.Unlock()

	state, answers := c.src.Snapshot()
	c.backups.Put(Key(c.userID, c.testID), Backup{StateJSON: state, Answers: answers})
	c.flushDurable(ctx)
}
