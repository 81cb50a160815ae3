// Package session manages named, reusable browser-backed sessions: a
// caller can create a session once, drive several crawl operations against
// it, and rely on an idle sweep to reclaim it if it is forgotten.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"crawlforge/internal/browser"
	"crawlforge/internal/model"
)

// DriverFactory constructs a fresh, unstarted browser driver. Production
// code passes browser.NewRodDriver; tests pass a fake.
type DriverFactory func() browser.Driver

// entry pairs a Session value with the live driver backing it. mu serializes
// every caller's use of driver: Get holds it for as long as the caller holds
// the returned unlock func unreleased, so two operations requested against
// the same session id never run concurrently against the same underlying
// browser page.
type entry struct {
	mu      sync.Mutex
	session model.Session
	driver  browser.Driver
}

// Pool owns a set of named sessions and the goroutine that expires idle
// ones. The zero value is not usable; construct with New.
type Pool struct {
	mu       sync.Mutex
	sessions map[string]*entry
	factory  DriverFactory
	idleTTL  time.Duration
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// Options configures a Pool's idle-expiry behavior.
type Options struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

// New constructs a Pool and starts its idle sweeper. Callers must call
// CloseAll to release browser resources on shutdown.
func New(factory DriverFactory, opts Options, logger *slog.Logger) *Pool {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 5 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		sessions: make(map[string]*entry),
		factory:  factory,
		idleTTL:  opts.IdleTTL,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.sweepLoop(opts.SweepInterval)
	return p
}

// Create starts a new session with its own browser driver and returns its
// ID. jsEnabled is fixed for the lifetime of the session's driver.
func (p *Pool) Create(ctx context.Context, jsEnabled bool) (model.Session, error) {
	return p.CreateWithID(ctx, uuid.NewString(), jsEnabled)
}

// CreateWithID is Create with a caller-chosen session ID rather than a
// generated one, for callers (like the crawl orchestrator) that want to
// register a session under an ID the requester already referenced.
func (p *Pool) CreateWithID(ctx context.Context, id string, jsEnabled bool) (model.Session, error) {
	drv := p.factory()
	if err := drv.Start(ctx, jsEnabled); err != nil {
		return model.Session{}, fmt.Errorf("start session driver: %w", err)
	}

	now := time.Now().UTC()
	sess := model.Session{
		ID:         id,
		CreatedAt:  now,
		LastUsedAt: now,
		Metadata:   make(map[string]any),
	}

	p.mu.Lock()
	p.sessions[sess.ID] = &entry{session: sess, driver: drv}
	p.mu.Unlock()

	return sess, nil
}

// Get returns the session and its driver, touching LastUsedAt, along with an
// unlock func the caller must invoke (typically via defer) once it is done
// issuing operations against the driver. While that func remains uncalled,
// any other Get (or Close, or the idle sweeper) for the same session id
// blocks until it is released — this is what serializes concurrent
// operations requested against one session. Get reports ok = false if the
// session does not exist (including if it was already swept for being
// idle, or was removed while this call was waiting to acquire the entry).
func (p *Pool) Get(id string) (model.Session, browser.Driver, func(), bool) {
	p.mu.Lock()
	e, ok := p.sessions[id]
	p.mu.Unlock()
	if !ok {
		return model.Session{}, nil, func() {}, false
	}

	e.mu.Lock()

	p.mu.Lock()
	current, stillPresent := p.sessions[id]
	if stillPresent && current == e {
		e.session.LastUsedAt = time.Now().UTC()
	} else {
		stillPresent = false
	}
	sess := e.session
	drv := e.driver
	p.mu.Unlock()

	if !stillPresent {
		e.mu.Unlock()
		return model.Session{}, nil, func() {}, false
	}

	return sess, drv, e.mu.Unlock, true
}

// UpdateMetadata merges kv into the session's metadata bag, touching
// LastUsedAt. It reports ok = false if the session is gone.
func (p *Pool) UpdateMetadata(id string, kv map[string]any) (ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.sessions[id]
	if !ok {
		return false
	}
	for k, v := range kv {
		e.session.Metadata[k] = v
	}
	e.session.LastUsedAt = time.Now().UTC()
	return true
}

// Close tears down one session's driver and removes it from the pool. It is
// a no-op if the session is already gone. If an operation obtained via Get
// is still in flight, Close waits for it to finish before closing the
// driver out from under it.
func (p *Pool) Close(id string) {
	p.mu.Lock()
	e, ok := p.sessions[id]
	if ok {
		delete(p.sessions, id)
	}
	p.mu.Unlock()

	if ok {
		e.mu.Lock()
		_ = e.driver.Close()
		e.mu.Unlock()
	}
}

// CloseAll tears down every session's driver and stops the idle sweeper.
// After CloseAll the pool must not be used again.
func (p *Pool) CloseAll() {
	close(p.stop)
	<-p.done

	p.mu.Lock()
	entries := p.sessions
	p.sessions = make(map[string]*entry)
	p.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		_ = e.driver.Close()
		e.mu.Unlock()
	}
}

func (p *Pool) sweepLoop(interval time.Duration) {
	defer close(p.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.sweepOnce()
		}
	}
}

func (p *Pool) sweepOnce() {
	now := time.Now().UTC()

	var expired []*entry
	p.mu.Lock()
	for id, e := range p.sessions {
		if now.Sub(e.session.LastUsedAt) >= p.idleTTL {
			expired = append(expired, e)
			delete(p.sessions, id)
		}
	}
	p.mu.Unlock()

	for _, e := range expired {
		e.mu.Lock()
		p.logger.Info("closing idle session", "sessionId", e.session.ID, "idleFor", now.Sub(e.session.LastUsedAt))
		_ = e.driver.Close()
		e.mu.Unlock()
	}
}

// Count reports how many sessions are currently live. Intended for tests
// and metrics, not for control flow.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}
