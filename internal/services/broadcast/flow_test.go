package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fleepgift/coinledger/internal/repos/drafts/memory"
)

const operator int64 = 100

func TestFlow_HappyPath(t *testing.T) {
	t.Parallel()

	f := NewFlow(memory.New(), time.Minute)
	ctx := t.Context()

	st, err := f.State(ctx, operator)
	if err != nil || st != StateIdle {
		t.Fatalf("want idle, got %q (%v)", st, err)
	}

	err = f.Begin(ctx, operator)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	steps := []struct {
		input string
		want  State
	}{
		{"Spring sale!", StateAwaitingLabel},
		{"  Open game  ", StateReady},
		{"ignored", StateReady},
	}

	for _, s := range steps {
		got, err := f.Input(ctx, operator, s.input)
		if err != nil {
			t.Fatalf("Input(%q): %v", s.input, err)
		}
		if got != s.want {
			t.Fatalf("Input(%q): want %q, got %q", s.input, s.want, got)
		}
	}

	text, label, err := f.Take(ctx, operator)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if text != "Spring sale!" || label != "Open game" {
		t.Fatalf("unexpected draft: %q / %q", text, label)
	}

	_, _, err = f.Take(ctx, operator)
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("second Take: want ErrNoSession, got %v", err)
	}
}

func TestFlow_InputWithoutSession(t *testing.T) {
	t.Parallel()

	f := NewFlow(memory.New(), time.Minute)

	st, err := f.Input(t.Context(), operator, "hello")
	if !errors.Is(err, ErrNoSession) || st != StateIdle {
		t.Fatalf("want ErrNoSession in idle, got %q (%v)", st, err)
	}
}

func TestFlow_EmptyInputKeepsState(t *testing.T) {
	t.Parallel()

	f := NewFlow(memory.New(), time.Minute)
	ctx := t.Context()

	_ = f.Begin(ctx, operator)

	st, err := f.Input(ctx, operator, "   ")
	if !errors.Is(err, ErrEmptyInput) || st != StateAwaitingText {
		t.Fatalf("want ErrEmptyInput in awaiting_text, got %q (%v)", st, err)
	}
}

func TestFlow_TakeBeforeReady(t *testing.T) {
	t.Parallel()

	f := NewFlow(memory.New(), time.Minute)
	ctx := t.Context()

	_ = f.Begin(ctx, operator)
	_, _ = f.Input(ctx, operator, "text only")

	_, _, err := f.Take(ctx, operator)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("want ErrNotReady, got %v", err)
	}
}

func TestFlow_Cancel(t *testing.T) {
	t.Parallel()

	f := NewFlow(memory.New(), time.Minute)
	ctx := t.Context()

	had, err := f.Cancel(ctx, operator)
	if err != nil || had {
		t.Fatalf("cancel without draft: had=%v err=%v", had, err)
	}

	_ = f.Begin(ctx, operator)

	had, err = f.Cancel(ctx, operator)
	if err != nil || !had {
		t.Fatalf("cancel with draft: had=%v err=%v", had, err)
	}

	st, _ := f.State(ctx, operator)
	if st != StateIdle {
		t.Fatalf("want idle after cancel, got %q", st)
	}
}

func TestFlow_OperatorsAreIndependent(t *testing.T) {
	t.Parallel()

	f := NewFlow(memory.New(), time.Minute)
	ctx := t.Context()

	_ = f.Begin(ctx, 1)

	_, err := f.Input(ctx, 2, "hello")
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("operator 2 has no session, got %v", err)
	}

	st, _ := f.Input(ctx, 1, "hello")
	if st != StateAwaitingLabel {
		t.Fatalf("operator 1: want awaiting_label, got %q", st)
	}
}

func TestFlow_ConcurrentTakeConsumesOnce(t *testing.T) {
	t.Parallel()

	f := NewFlow(memory.New(), time.Minute)
	ctx := t.Context()

	_ = f.Begin(ctx, operator)
	_, _ = f.Input(ctx, operator, "text")
	_, _ = f.Input(ctx, operator, "label")

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, _, err := f.Take(ctx, operator)
			if err == nil {
				wins.Add(1)
			}
		}()
	}

	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("ready draft must be consumed exactly once, got %d", wins.Load())
	}
}
