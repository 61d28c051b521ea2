// Package claims tracks the short-lived resources (DM notices and private
// rooms) opened for promoted users, each with one cancellable expiry timer.
//
// A single mutex guards the timer table. Expiry and submission both go
// through it, so for any resource exactly one of them wins: the loser finds
// the entry gone and does nothing (expiry) or gets ErrClaimWindowClosed
// (submission).
package claims

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/izikdepth/MemeBot/internal/transport"
)

var (
	// ErrClaimWindowClosed means the resource already expired.
	ErrClaimWindowClosed = errors.New("claim window closed")
	// ErrResourceMismatch means the resource is unknown or opened for
	// another user.
	ErrResourceMismatch = errors.New("claim resource mismatch")
)

// Kind distinguishes delivery resources.
type Kind string

const (
	KindDM   Kind = "dm"
	KindRoom Kind = "room"
)

// Resource is an opened delivery resource. ID is the channel id of the DM or
// private room; Message is the notice posted into it.
type Resource struct {
	ID      string
	UserID  string
	Kind    Kind
	Message transport.MessageRef
}

// Claim is a read-only view of a pending entry.
type Claim struct {
	Resource Resource
	Deadline time.Time
}

// TeardownFunc removes a resource from the chat platform.
type TeardownFunc func(ctx context.Context, res Resource) error

// closedRetention bounds how long an expired resource id is remembered for
// ErrClaimWindowClosed reporting.
const closedRetention = 7 * 24 * time.Hour

// TeardownTimeout bounds teardown calls made from expiry callbacks.
var TeardownTimeout = 30 * time.Second

type entry struct {
	res      Resource
	deadline time.Time
	timer    clockwork.Timer
}

type closedEntry struct {
	userID string
	at     time.Time
}

// Manager is the timer table.
type Manager struct {
	clock    clockwork.Clock
	teardown TeardownFunc

	// OnExpired, when set, runs after an expired resource was torn down.
	// Set it before the first Register.
	OnExpired func(Resource)

	mu      sync.Mutex
	pending map[string]*entry
	closed  map[string]closedEntry
	stopped bool
}

// NewManager returns an empty table. A nil clock means the real clock.
func NewManager(clock clockwork.Clock, teardown TeardownFunc) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if teardown == nil {
		teardown = func(context.Context, Resource) error { return nil }
	}
	return &Manager{
		clock:    clock,
		teardown: teardown,
		pending:  make(map[string]*entry),
		closed:   make(map[string]closedEntry),
	}
}

// TransportTeardown deletes rooms and DM notices through t.
func TransportTeardown(t transport.Transport) TeardownFunc {
	return func(ctx context.Context, res Resource) error {
		if res.Kind == KindRoom {
			return t.DeleteResource(ctx, res.ID)
		}
		if res.Message.IsZero() {
			return nil
		}
		return t.DeleteMessage(ctx, res.Message)
	}
}

// Register starts the expiry timer for res and returns its deadline. A timer
// already bound to the same resource id is stopped and replaced.
func (m *Manager) Register(res Resource, window time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	deadline := now.Add(window)
	if m.stopped {
		return deadline
	}
	if old, ok := m.pending[res.ID]; ok {
		old.timer.Stop()
	}
	delete(m.closed, res.ID)
	m.pruneClosedLocked(now)

	e := &entry{res: res, deadline: deadline}
	e.timer = m.clock.AfterFunc(window, func() { m.expire(e) })
	m.pending[res.ID] = e

	log.Debug().
		Str("component", "claims").
		Str("resource_id", res.ID).
		Str("user_id", res.UserID).
		Time("deadline", deadline).
		Msg("claim registered")
	return deadline
}

// CommitFunc persists a claim submission. It runs while the table is
// locked, so it must not call back into the Manager.
type CommitFunc func() error

// Resolve completes the claim bound to resourceID for userID. commit runs
// under the lock while the entry is still pending; if it fails the entry and
// its timer are left untouched and the error is returned. Otherwise the entry
// is removed, the timer stopped and the resource torn down. Teardown failures
// are logged, not returned.
func (m *Manager) Resolve(ctx context.Context, resourceID, userID string, commit CommitFunc) (Resource, error) {
	m.mu.Lock()
	e, ok := m.pending[resourceID]
	if !ok {
		c, wasClosed := m.closed[resourceID]
		m.mu.Unlock()
		if wasClosed && c.userID == userID {
			return Resource{}, ErrClaimWindowClosed
		}
		return Resource{}, ErrResourceMismatch
	}
	if e.res.UserID != userID {
		m.mu.Unlock()
		return Resource{}, ErrResourceMismatch
	}
	if commit != nil {
		if err := commit(); err != nil {
			m.mu.Unlock()
			return Resource{}, err
		}
	}
	delete(m.pending, resourceID)
	e.timer.Stop()
	m.mu.Unlock()

	m.tearDown(ctx, e.res, "resolved")
	return e.res, nil
}

// ResolveUser resolves every pending resource of userID, with the same
// commit contract as Resolve. A user with nothing pending can still commit,
// unless a resource of theirs expired recently and nothing replaced it; that
// is ErrClaimWindowClosed.
func (m *Manager) ResolveUser(ctx context.Context, userID string, commit CommitFunc) ([]Resource, error) {
	m.mu.Lock()
	var open []*entry
	for _, e := range m.pending {
		if e.res.UserID == userID {
			open = append(open, e)
		}
	}
	if len(open) == 0 && m.recentlyClosedLocked(userID) {
		m.mu.Unlock()
		return nil, ErrClaimWindowClosed
	}
	if commit != nil {
		if err := commit(); err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}
	out := make([]Resource, 0, len(open))
	for _, e := range open {
		delete(m.pending, e.res.ID)
		e.timer.Stop()
		out = append(out, e.res)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	for _, res := range out {
		m.tearDown(ctx, res, "resolved")
	}
	return out, nil
}

func (m *Manager) recentlyClosedLocked(userID string) bool {
	m.pruneClosedLocked(m.clock.Now())
	for _, c := range m.closed {
		if c.userID == userID {
			return true
		}
	}
	return false
}

// Pending lists the open claims ordered by deadline.
func (m *Manager) Pending() []Claim {
	m.mu.Lock()
	out := make([]Claim, 0, len(m.pending))
	for _, e := range m.pending {
		out = append(out, Claim{Resource: e.res, Deadline: e.deadline})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Resource.ID < out[j].Resource.ID
		}
		return out[i].Deadline.Before(out[j].Deadline)
	})
	return out
}

// Close stops every timer without tearing resources down. Later Register
// calls are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.pending {
		e.timer.Stop()
		delete(m.pending, id)
	}
	m.stopped = true
}

func (m *Manager) expire(e *entry) {
	m.mu.Lock()
	cur, ok := m.pending[e.res.ID]
	if !ok || cur != e {
		m.mu.Unlock()
		return
	}
	delete(m.pending, e.res.ID)
	m.closed[e.res.ID] = closedEntry{userID: e.res.UserID, at: m.clock.Now()}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), TeardownTimeout)
	defer cancel()
	m.tearDown(ctx, e.res, "expired")
	if m.OnExpired != nil {
		m.OnExpired(e.res)
	}
}

func (m *Manager) tearDown(ctx context.Context, res Resource, reason string) {
	l := log.With().
		Str("component", "claims").
		Str("resource_id", res.ID).
		Str("user_id", res.UserID).
		Str("reason", reason).
		Logger()
	if err := m.teardown(ctx, res); err != nil {
		l.Warn().Err(err).Msg("resource teardown failed")
		return
	}
	l.Info().Msg("claim resource closed")
}

func (m *Manager) pruneClosedLocked(now time.Time) {
	for id, c := range m.closed {
		if now.Sub(c.at) > closedRetention {
			delete(m.closed, id)
		}
	}
}
