package tracking

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMovementStatus_SetReportsChange(t *testing.T) {
	var s MovementStatus

	if s.Done() {
		t.Fatal("zero value should not be done")
	}
	if !s.Set(true) {
		t.Error("false -> true should report a change")
	}
	if s.Set(true) {
		t.Error("true -> true should not report a change")
	}
	s.Reset()
	if s.Done() {
		t.Error("Reset should clear done")
	}
}

func TestMovementStatus_SetWithoutWaiters(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*MovementStatus)
	}{
		{"fresh", func(*MovementStatus) {}},
		{"reset while not done", func(s *MovementStatus) { s.Reset() }},
		{"after a full cycle", func(s *MovementStatus) { s.Set(true); s.Reset() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMovementStatus()
			tt.setup(s)

			if !s.Set(true) {
				t.Fatal("false -> true should report a change")
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.Wait(ctx); err != nil {
				t.Errorf("Wait after Set(true) = %v", err)
			}
		})
	}
}

func TestMovementStatus_WaitWakesOnSet(t *testing.T) {
	s := NewMovementStatus()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- s.Wait(ctx) }()

	time.Sleep(10 * time.Millisecond)
	s.Set(true)

	if err := <-errc; err != nil {
		t.Fatalf("Wait returned %v", err)
	}
}

func TestMovementStatus_WaitAlreadyDone(t *testing.T) {
	s := NewMovementStatus()
	s.Set(true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Already done wins even with a dead context
	if err := s.Wait(ctx); err != nil {
		t.Errorf("Wait = %v, want nil", err)
	}
}

func TestMovementStatus_ResetBlocksAgain(t *testing.T) {
	s := NewMovementStatus()
	s.Set(true)
	s.Reset()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait after Reset = %v, want deadline exceeded", err)
	}
}

func TestMovementStatus_WaitPoll(t *testing.T) {
	s := NewMovementStatus()

	go func() {
		time.Sleep(15 * time.Millisecond)
		s.Set(true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.WaitPoll(ctx, 5*time.Millisecond); err != nil {
		t.Fatalf("WaitPoll returned %v", err)
	}
}

func TestMovementStatus_WaitPollTimeout(t *testing.T) {
	s := NewMovementStatus()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := s.WaitPoll(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitPoll = %v, want deadline exceeded", err)
	}
}
