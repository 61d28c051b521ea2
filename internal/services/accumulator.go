package services

import (
	"sort"
	"sync"

	"github.com/izikdepth/MemeBot/internal/transport"
)

// UserActivity is one user's activity within the current refresh cycle.
type UserActivity struct {
	UserID      string
	Events      int64
	Points      int64
	LastMessage transport.MessageRef
	firstSeen   uint64
}

// Accumulator collects per-cycle activity between refreshes.
type Accumulator struct {
	mu    sync.Mutex
	users map[string]*UserActivity
	seq   uint64
}

func NewAccumulator() *Accumulator {
	return &Accumulator{users: make(map[string]*UserActivity)}
}

func (a *Accumulator) entry(userID string) *UserActivity {
	u, ok := a.users[userID]
	if !ok {
		a.seq++
		u = &UserActivity{UserID: userID, firstSeen: a.seq}
		a.users[userID] = u
	}
	return u
}

// Touch counts one event and remembers its message.
func (a *Accumulator) Touch(userID string, msg transport.MessageRef) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := a.entry(userID)
	u.Events++
	if !msg.IsZero() {
		u.LastMessage = msg
	}
}

// AddPoints records points granted during the cycle.
func (a *Accumulator) AddPoints(userID string, n int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entry(userID).Points += n
}

// Len is the number of users seen this cycle.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.users)
}

// Snapshot copies the current state ordered by event count, ties broken by
// first-seen order.
func (a *Accumulator) Snapshot() []UserActivity {
	a.mu.Lock()
	out := make([]UserActivity, 0, len(a.users))
	for _, u := range a.users {
		out = append(out, *u)
	}
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Events != out[j].Events {
			return out[i].Events > out[j].Events
		}
		return out[i].firstSeen < out[j].firstSeen
	})
	return out
}

// Commit subtracts a snapshot. Activity recorded after the snapshot was taken
// survives into the next cycle.
func (a *Accumulator) Commit(snap []UserActivity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range snap {
		u, ok := a.users[s.UserID]
		if !ok {
			continue
		}
		u.Events -= s.Events
		u.Points -= s.Points
		if u.Events <= 0 && u.Points <= 0 {
			delete(a.users, s.UserID)
		}
	}
}
