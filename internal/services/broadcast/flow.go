package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fleepgift/coinledger/internal/repos/drafts"
)

var (
	ErrNoSession  = errors.New("no broadcast in progress")
	ErrEmptyInput = errors.New("input is empty")
	ErrNotReady   = errors.New("broadcast draft is not complete")
)

type State string

const (
	StateIdle          State = "idle"
	StateAwaitingText  State = State(drafts.StateAwaitingText)
	StateAwaitingLabel State = State(drafts.StateAwaitingLabel)
	StateReady         State = State(drafts.StateReady)
)

// Flow walks an operator through composing a broadcast: text first, then
// the button label. Each operator has at most one draft. Updates may arrive
// concurrently, so every read-modify-write of a draft holds mu.
type Flow struct {
	mu    sync.Mutex
	store drafts.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewFlow(store drafts.Store, ttl time.Duration) *Flow {
	return &Flow{store: store, ttl: ttl, now: time.Now}
}

// Begin starts a new draft, discarding any earlier one.
func (f *Flow) Begin(ctx context.Context, operatorID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := f.store.Save(ctx, operatorID, drafts.Draft{
		State:     drafts.StateAwaitingText,
		StartedAt: f.now().UTC(),
	}, f.ttl)
	if err != nil {
		return fmt.Errorf("begin broadcast: %w", err)
	}

	return nil
}

// State reports where the operator is in the flow.
func (f *Flow) State(ctx context.Context, operatorID int64) (State, error) {
	d, err := f.store.Load(ctx, operatorID)
	if errors.Is(err, drafts.ErrDraftNotFound) {
		return StateIdle, nil
	}
	if err != nil {
		return "", fmt.Errorf("broadcast state: %w", err)
	}

	return State(d.State), nil
}

// Input feeds the next piece of text into the draft and returns the new
// state. Input in a Ready draft replaces nothing and returns StateReady.
func (f *Flow) Input(ctx context.Context, operatorID int64, text string) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, err := f.store.Load(ctx, operatorID)
	if errors.Is(err, drafts.ErrDraftNotFound) {
		return StateIdle, ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("broadcast input: %w", err)
	}

	if strings.TrimSpace(text) == "" {
		return State(d.State), ErrEmptyInput
	}

	switch d.State {
	case drafts.StateAwaitingText:
		d.Text = text
		d.State = drafts.StateAwaitingLabel
	case drafts.StateAwaitingLabel:
		d.ButtonLabel = strings.TrimSpace(text)
		d.State = drafts.StateReady
	case drafts.StateReady:
		return StateReady, nil
	default:
		return StateIdle, ErrNoSession
	}

	err = f.store.Save(ctx, operatorID, d, f.ttl)
	if err != nil {
		return "", fmt.Errorf("broadcast input: %w", err)
	}

	return State(d.State), nil
}

// Take consumes a Ready draft. A second Take on the same draft returns
// ErrNoSession.
func (f *Flow) Take(ctx context.Context, operatorID int64) (text, buttonLabel string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, err := f.store.Load(ctx, operatorID)
	if errors.Is(err, drafts.ErrDraftNotFound) {
		return "", "", ErrNoSession
	}
	if err != nil {
		return "", "", fmt.Errorf("broadcast take: %w", err)
	}

	if d.State != drafts.StateReady {
		return "", "", ErrNotReady
	}

	err = f.store.Delete(ctx, operatorID)
	if err != nil {
		return "", "", fmt.Errorf("broadcast take: %w", err)
	}

	return d.Text, d.ButtonLabel, nil
}

// Cancel drops the operator's draft. It reports whether one existed.
func (f *Flow) Cancel(ctx context.Context, operatorID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, err := f.store.Load(ctx, operatorID)
	if errors.Is(err, drafts.ErrDraftNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("broadcast cancel: %w", err)
	}

	err = f.store.Delete(ctx, operatorID)
	if err != nil {
		return false, fmt.Errorf("broadcast cancel: %w", err)
	}

	return true, nil
}
