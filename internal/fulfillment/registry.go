package fulfillment

import (
	"context"
	"sort"
	"sync"
	"time"

	"fulfillment_backend/platform/apperr"
)

// TrackingRegistry owns the detached tracking tasks. Tasks are keyed by
// claim id; a claim is tracked at most once. State is in-memory only and
// does not survive a restart.
type TrackingRegistry struct {
	mu    sync.Mutex
	ttl   time.Duration
	tasks map[string]context.CancelFunc
}

// NewTrackingRegistry creates an empty registry. Contexts handed out by
// Register expire after ttl; zero means no deadline.
func NewTrackingRegistry(ttl time.Duration) *TrackingRegistry {
	return &TrackingRegistry{ttl: ttl, tasks: make(map[string]context.CancelFunc)}
}

// Register reserves a tracking slot for the claim and returns the context
// the tracking task must run under. Registering an already-tracked claim
// fails.
func (r *TrackingRegistry) Register(claimID string) (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[claimID]; exists {
		return nil, apperr.BadRequest("claim is already being tracked").WithOp("fulfillment.Register")
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if r.ttl > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), r.ttl)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	r.tasks[claimID] = cancel
	return ctx, nil
}

// Done releases the claim's slot. Called by the tracking task when it ends.
func (r *TrackingRegistry) Done(claimID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, exists := r.tasks[claimID]; exists {
		cancel()
		delete(r.tasks, claimID)
	}
}

// Active lists claims currently being tracked, sorted for stable output.
func (r *TrackingRegistry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	claims := make([]string, 0, len(r.tasks))
	for claimID := range r.tasks {
		claims = append(claims, claimID)
	}
	sort.Strings(claims)
	return claims
}

// CancelAll cancels every running tracking task. Used on shutdown.
func (r *TrackingRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for claimID, cancel := range r.tasks {
		cancel()
		delete(r.tasks, claimID)
	}
}
