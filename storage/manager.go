package storage

import (
	"context"
	"sync"
	"time"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/internal/util"
)

// ErrorHandler receives backend failures the manager swallows.
// op is "save" or "load".
type ErrorHandler func(op string, err error)

// Manager debounces snapshot saves in front of a single backend.
//
// Every Save call enqueues a full snapshot and restarts the quiet period timer.
// When the timer fires the queue is bundled with a shallow envelope merge in
// arrival order, so the last snapshot queued is the one written. Backend saves
// never overlap.
type Manager struct {
	backend webvfs.Backend
	delay   time.Duration
	onError ErrorHandler

	mu    sync.Mutex // guards queue, timer, gen
	queue []*webvfs.Snapshot
	timer *time.Timer
	gen   uint64 // bumped whenever the pending timer is superseded

	saveMu sync.Mutex // serializes backend.Save
}

type ManagerOption func(*Manager)

// WithErrorHandler reports swallowed save/load failures to h
func WithErrorHandler(h ErrorHandler) ManagerOption {
	return func(m *Manager) {
		m.onError = h
	}
}

func NewManager(backend webvfs.Backend, delay time.Duration, opts ...ManagerOption) *Manager {
	m := &Manager{
		backend: backend,
		delay:   delay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Backend returns the wrapped backend
func (m *Manager) Backend() webvfs.Backend {
	return m.backend
}

func (m *Manager) Initialize(ctx context.Context) error {
	return m.backend.Initialize(ctx)
}

// Save queues snap and restarts the debounce timer. Callers must not mutate
// snap afterwards.
func (m *Manager) Save(snap *webvfs.Snapshot) {
	if snap == nil {
		return
	}
	logger := util.GetLogger("Manager.Save")

	m.mu.Lock()
	defer m.mu.Unlock()

	m.queue = append(m.queue, snap)
	if m.timer != nil {
		m.timer.Stop()
	}
	m.gen++
	gen := m.gen
	m.timer = time.AfterFunc(m.delay, func() {
		m.fire(gen)
	})
	logger.Trace().Int("pending", len(m.queue)).Dur("delay", m.delay).Msg("Queued snapshot")
}

// Pending reports how many snapshots are waiting for the next save
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Flush saves the pending bundle now and returns the backend error, if any.
// The error is also reported to the error handler.
func (m *Manager) Flush(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()
	queue := m.takeLocked()
	m.mu.Unlock()

	return m.save(ctx, queue)
}

func (m *Manager) fire(gen uint64) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()
	if gen != m.gen {
		// superseded by a later Save, Flush or Reset
		m.mu.Unlock()
		return
	}
	queue := m.takeLocked()
	m.mu.Unlock()

	_ = m.save(context.Background(), queue)
}

// takeLocked drains the queue and cancels the timer; m.mu must be held
func (m *Manager) takeLocked() []*webvfs.Snapshot {
	queue := m.queue
	m.queue = nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
	return queue
}

func (m *Manager) save(ctx context.Context, queue []*webvfs.Snapshot) error {
	if len(queue) == 0 {
		return nil
	}
	logger := util.GetLogger("Manager.Save")

	snap := bundle(queue)
	if err := m.backend.Save(ctx, snap); err != nil {
		logger.Error().Err(err).Int("bundled", len(queue)).Msg("Failed to save snapshot")
		m.report("save", err)
		return err
	}
	logger.Debug().Int("bundled", len(queue)).Msg("Saved snapshot")
	return nil
}

// bundle shallow merges the envelopes in order; later roots replace earlier ones
func bundle(queue []*webvfs.Snapshot) *webvfs.Snapshot {
	out := &webvfs.Snapshot{}
	for _, s := range queue {
		if s.Root != nil {
			out.Root = s.Root
		}
	}
	return out
}

// Load returns the stored snapshot, or nil when nothing is stored or the
// backend fails. Failures are logged and reported, never returned.
func (m *Manager) Load(ctx context.Context) *webvfs.Snapshot {
	logger := util.GetLogger("Manager.Load")

	snap, err := m.backend.Load(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load snapshot")
		m.report("load", err)
		return nil
	}
	if snap.Empty() {
		logger.Debug().Msg("No stored snapshot")
		return nil
	}
	return snap
}

// Reset drops any pending save and resets the backend
func (m *Manager) Reset(ctx context.Context) (bool, error) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()
	dropped := len(m.takeLocked())
	m.mu.Unlock()

	util.GetLogger("Manager.Reset").Debug().Int("dropped", dropped).Msg("Resetting backend")
	return m.backend.Reset(ctx)
}

func (m *Manager) report(op string, err error) {
	if m.onError != nil {
		m.onError(op, err)
	}
}
