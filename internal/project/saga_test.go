package project

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func TestRunSagaSuccessSkipsCompensation(t *testing.T) {
	var compensated bool
	steps := []Step{
		{
			Name:       "one",
			Run:        func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { compensated = true; return nil },
		},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := runSaga(context.Background(), log, "test", steps); err != nil {
		t.Fatalf("runSaga: %v", err)
	}
	if compensated {
		t.Error("compensation ran on success")
	}
}

func TestRunSagaCompensatesInReverse(t *testing.T) {
	boom := errors.New("boom")
	var order []string
	comp := func(name string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			order = append(order, name)
			return nil
		}
	}
	steps := []Step{
		{Name: "a", Run: func(ctx context.Context) error { return nil }, Compensate: comp("a")},
		{Name: "b", Run: func(ctx context.Context) error { return nil }, Compensate: comp("b")},
		{Name: "c", Run: func(ctx context.Context) error { return boom }, Compensate: comp("c")},
		{Name: "d", Run: func(ctx context.Context) error { t.Error("step after failure ran"); return nil }},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := runSaga(context.Background(), log, "test", steps)
	if !errors.Is(err, boom) {
		t.Fatalf("runSaga = %v, want the original error", err)
	}
	want := []string{"c", "b", "a"}
	if len(order) != len(want) {
		t.Fatalf("compensations = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("compensations = %v, want %v", order, want)
		}
	}
}

// A failing compensation does not stop the remaining compensations and the
// caller still sees the step's original error.
func TestRunSagaCompensationFailureDoesNotEscalate(t *testing.T) {
	boom := errors.New("boom")
	var reached bool
	steps := []Step{
		{
			Name:       "a",
			Run:        func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { reached = true; return nil },
		},
		{
			Name:       "b",
			Run:        func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { return errors.New("undo failed") },
		},
		{
			Name: "c",
			Run:  func(ctx context.Context) error { return boom },
		},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := runSaga(context.Background(), log, "test", steps)
	if !errors.Is(err, boom) {
		t.Fatalf("runSaga = %v, want the original error", err)
	}
	if !reached {
		t.Error("compensation chain stopped after a failed compensation")
	}
}
