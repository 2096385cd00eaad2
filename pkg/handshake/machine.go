package handshake

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ForYouPage-Org/saturn-federation/pkg/activity"
	"github.com/ForYouPage-Org/saturn-federation/pkg/store"
)

// Hooks receives the side effects of completed transitions. The machine
// only fires a hook when state actually changed; duplicate deliveries
// never reach the hooks. A nil hook set disables notifications.
type Hooks interface {
	// FollowRequested fires when a remote follower's Follow lands,
	// after the pending relationship is stored. Implementations
	// typically notify the followee and enqueue the Accept.
	FollowRequested(ctx context.Context, follower, followee string) error

	// FollowAccepted fires when the followee accepts a pending follow.
	FollowAccepted(ctx context.Context, follower, followee string) error

	// FollowRejected fires when the followee rejects a pending follow.
	FollowRejected(ctx context.Context, follower, followee string) error

	// FollowUndone fires when a follower retracts a pending or
	// accepted follow.
	FollowUndone(ctx context.Context, follower, followee string) error
}

// Result reports what the machine did with an inbound activity.
type Result struct {
	// Duplicate is true when the activity ID had been processed
	// before. The activity was accepted at the protocol layer but no
	// side effect ran.
	Duplicate bool

	// Handled is true when the activity was a handshake activity the
	// machine consumed. Create, Delete and unknown types are deduped
	// but left for the business-logic collaborator.
	Handled bool
}

// Config holds the parameters for a Machine.
type Config struct {
	// Dedup records processed activity IDs. Required.
	Dedup store.DedupStore

	// Relationships persists follow state. Required.
	Relationships store.RelationshipStore

	// Hooks receives transition side effects. Optional.
	Hooks Hooks

	// Retention is how long dedup records are kept before eviction.
	// Defaults to 24 hours.
	Retention time.Duration

	// Logger receives transition events. If nil, a no-op logger is
	// used.
	Logger *slog.Logger

	// NowFunc supplies the clock. Defaults to time.Now.
	NowFunc func() time.Time
}

// Machine applies verified inbound activities to the follow-handshake
// state table with activity-ID deduplication.
//
// Transitions:
//
//	None      --Follow-->        Requested
//	Requested --Accept-->        Accepted
//	Requested --Reject-->        Rejected
//	Requested --Undo(Follow)-->  None
//	Accepted  --Undo(Follow)-->  None
//
// Anything else referencing missing prior state fails with
// ErrInvalidTransition.
type Machine struct {
	dedup         store.DedupStore
	relationships store.RelationshipStore
	hooks         Hooks
	retention     time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewMachine creates a handshake machine from the given configuration.
func NewMachine(cfg Config) (*Machine, error) {
	if cfg.Dedup == nil {
		return nil, fmt.Errorf("handshake: Dedup is required")
	}
	if cfg.Relationships == nil {
		return nil, fmt.Errorf("handshake: Relationships is required")
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}
	return &Machine{
		dedup:         cfg.Dedup,
		relationships: cfg.Relationships,
		hooks:         cfg.Hooks,
		retention:     cfg.Retention,
		logger:        cfg.Logger,
		now:           cfg.NowFunc,
	}, nil
}

// HandleInbound processes one verified activity. verifiedActor is the
// actor the signature authenticated; it must match the activity's
// declared actor, or the activity is rejected before any state change.
func (m *Machine) HandleInbound(ctx context.Context, act *activity.Activity, verifiedActor string) (*Result, error) {
	if act.Actor != verifiedActor {
		return nil, fmt.Errorf("%w: activity %s declares actor %s but was signed by %s",
			ErrActorMismatch, act.ID, act.Actor, verifiedActor)
	}

	seen, err := m.dedup.MarkSeen(ctx, store.DedupRecord{
		ActivityID:  act.ID,
		ActorURI:    act.Actor,
		Type:        string(act.Type),
		FirstSeenAt: m.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("dedup check for %s: %w", act.ID, err)
	}
	if seen {
		m.logger.Debug("duplicate activity short-circuited",
			"activity_id", act.ID,
			"actor", act.Actor,
		)
		return &Result{Duplicate: true}, nil
	}

	switch act.Type {
	case activity.TypeFollow:
		return m.handleFollow(ctx, act)
	case activity.TypeAccept:
		return m.handleAccept(ctx, act)
	case activity.TypeReject:
		return m.handleReject(ctx, act)
	case activity.TypeUndo:
		return m.handleUndo(ctx, act)
	default:
		// Deduped but not a handshake activity; the caller forwards it
		// to the business-logic collaborator.
		return &Result{}, nil
	}
}

func (m *Machine) handleFollow(ctx context.Context, act *activity.Activity) (*Result, error) {
	followee, err := act.ObjectID()
	if err != nil {
		return nil, err
	}
	follower := act.Actor

	current, err := m.state(ctx, follower, followee)
	if err != nil {
		return nil, err
	}
	// A repeat Follow with a fresh activity ID while one is pending or
	// accepted references no new state to create.
	if current == StateRequested || current == StateAccepted {
		return nil, fmt.Errorf("%w: Follow from %s to %s in state %q",
			ErrInvalidTransition, follower, followee, current)
	}

	if err := m.relationships.SetRelationship(ctx, follower, followee, string(StateRequested)); err != nil {
		return nil, fmt.Errorf("storing pending follow: %w", err)
	}
	m.logger.Info("follow requested", "follower", follower, "followee", followee)
	if m.hooks != nil {
		if err := m.hooks.FollowRequested(ctx, follower, followee); err != nil {
			return nil, fmt.Errorf("follow-requested hook: %w", err)
		}
	}
	return &Result{Handled: true}, nil
}

func (m *Machine) handleAccept(ctx context.Context, act *activity.Activity) (*Result, error) {
	follower, followee, err := m.innerFollow(act)
	if err != nil {
		return nil, err
	}
	// Only the followee may accept.
	if act.Actor != followee {
		return nil, fmt.Errorf("%w: Accept from %s for follow targeting %s",
			ErrInvalidTransition, act.Actor, followee)
	}

	current, err := m.state(ctx, follower, followee)
	if err != nil {
		return nil, err
	}
	if current != StateRequested {
		return nil, fmt.Errorf("%w: Accept for %s -> %s in state %q",
			ErrInvalidTransition, follower, followee, current)
	}

	if err := m.relationships.SetRelationship(ctx, follower, followee, string(StateAccepted)); err != nil {
		return nil, fmt.Errorf("materializing relationship: %w", err)
	}
	m.logger.Info("follow accepted", "follower", follower, "followee", followee)
	if m.hooks != nil {
		if err := m.hooks.FollowAccepted(ctx, follower, followee); err != nil {
			return nil, fmt.Errorf("follow-accepted hook: %w", err)
		}
	}
	return &Result{Handled: true}, nil
}

func (m *Machine) handleReject(ctx context.Context, act *activity.Activity) (*Result, error) {
	follower, followee, err := m.innerFollow(act)
	if err != nil {
		return nil, err
	}
	if act.Actor != followee {
		return nil, fmt.Errorf("%w: Reject from %s for follow targeting %s",
			ErrInvalidTransition, act.Actor, followee)
	}

	current, err := m.state(ctx, follower, followee)
	if err != nil {
		return nil, err
	}
	if current != StateRequested {
		return nil, fmt.Errorf("%w: Reject for %s -> %s in state %q",
			ErrInvalidTransition, follower, followee, current)
	}

	if err := m.relationships.SetRelationship(ctx, follower, followee, string(StateRejected)); err != nil {
		return nil, fmt.Errorf("discarding pending follow: %w", err)
	}
	m.logger.Info("follow rejected", "follower", follower, "followee", followee)
	if m.hooks != nil {
		if err := m.hooks.FollowRejected(ctx, follower, followee); err != nil {
			return nil, fmt.Errorf("follow-rejected hook: %w", err)
		}
	}
	return &Result{Handled: true}, nil
}

func (m *Machine) handleUndo(ctx context.Context, act *activity.Activity) (*Result, error) {
	inner, err := act.InnerActivity()
	if err != nil {
		return nil, err
	}
	if inner.Type != activity.TypeFollow {
		// Undo of anything but Follow is for the collaborator.
		return &Result{}, nil
	}

	followee, err := inner.ObjectID()
	if err != nil {
		return nil, err
	}
	follower := act.Actor
	// Only the original follower may undo.
	if inner.Actor != "" && inner.Actor != follower {
		return nil, fmt.Errorf("%w: Undo from %s of a follow by %s",
			ErrInvalidTransition, follower, inner.Actor)
	}

	current, err := m.state(ctx, follower, followee)
	if err != nil {
		return nil, err
	}
	if current != StateRequested && current != StateAccepted {
		return nil, fmt.Errorf("%w: Undo(Follow) for %s -> %s in state %q",
			ErrInvalidTransition, follower, followee, current)
	}

	if err := m.relationships.DeleteRelationship(ctx, follower, followee); err != nil {
		return nil, fmt.Errorf("removing relationship: %w", err)
	}
	m.logger.Info("follow undone", "follower", follower, "followee", followee)
	if m.hooks != nil {
		if err := m.hooks.FollowUndone(ctx, follower, followee); err != nil {
			return nil, fmt.Errorf("follow-undone hook: %w", err)
		}
	}
	return &Result{Handled: true}, nil
}

// Accept applies a local followee's acceptance of a pending follow.
// The inbound path materializes the relationship when a remote Accept
// arrives; this is the outbound counterpart, called after the local
// actor's Accept activity is queued for delivery. Fires the
// FollowAccepted hook like the inbound transition does.
func (m *Machine) Accept(ctx context.Context, follower, followee string) error {
	current, err := m.state(ctx, follower, followee)
	if err != nil {
		return err
	}
	if current != StateRequested {
		return fmt.Errorf("%w: Accept for %s -> %s in state %q",
			ErrInvalidTransition, follower, followee, current)
	}

	if err := m.relationships.SetRelationship(ctx, follower, followee, string(StateAccepted)); err != nil {
		return fmt.Errorf("materializing relationship: %w", err)
	}
	m.logger.Info("follow accepted", "follower", follower, "followee", followee)
	if m.hooks != nil {
		if err := m.hooks.FollowAccepted(ctx, follower, followee); err != nil {
			return fmt.Errorf("follow-accepted hook: %w", err)
		}
	}
	return nil
}

// innerFollow extracts (follower, followee) from the Follow activity an
// Accept or Reject wraps as its object.
func (m *Machine) innerFollow(act *activity.Activity) (follower, followee string, err error) {
	inner, err := act.InnerActivity()
	if err != nil {
		return "", "", err
	}
	if inner.Type != activity.TypeFollow {
		return "", "", fmt.Errorf("%w: %s wraps %s, want Follow",
			ErrInvalidTransition, act.Type, inner.Type)
	}
	if inner.Actor == "" {
		return "", "", fmt.Errorf("%w: wrapped Follow has no actor", ErrInvalidTransition)
	}
	followee, err = inner.ObjectID()
	if err != nil {
		return "", "", err
	}
	return inner.Actor, followee, nil
}

func (m *Machine) state(ctx context.Context, follower, followee string) (State, error) {
	s, err := m.relationships.GetRelationship(ctx, follower, followee)
	if err != nil {
		return StateNone, fmt.Errorf("reading relationship %s -> %s: %w", follower, followee, err)
	}
	return State(s), nil
}

// Relationship reads the current state for a (follower, followee) pair.
func (m *Machine) Relationship(ctx context.Context, follower, followee string) (State, error) {
	return m.state(ctx, follower, followee)
}

// EvictExpired drops dedup records older than the retention window.
func (m *Machine) EvictExpired(ctx context.Context) (int, error) {
	return m.dedup.EvictBefore(ctx, m.now().Add(-m.retention))
}

// Run evicts expired dedup records on an hourly tick until the context
// is cancelled.
func (m *Machine) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted, err := m.EvictExpired(ctx)
			if err != nil {
				m.logger.Warn("dedup eviction failed", "error", err)
				continue
			}
			if evicted > 0 {
				m.logger.Debug("dedup records evicted", "count", evicted)
			}
		}
	}
}
