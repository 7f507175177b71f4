package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	released int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.released++
	return nil
}

type testJob struct {
	name     string
	err      error
	runs     int
	deadline bool
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	_, t.deadline = ctx.Deadline()
	return t.err
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestRunOnceRunsEveryJobDespiteFailures(t *testing.T) {
	first := &testJob{name: "payment-reconcile", err: errors.New("gateway down")}
	second := &testJob{name: "order-abandon"}
	lock := &fakeLock{}
	svc, err := NewService(ServiceParams{
		Logger:   quietLogger(),
		Registry: NewRegistry(first, second),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if first.runs != 1 || second.runs != 1 {
		t.Fatalf("expected each job to run once, got %d and %d", first.runs, second.runs)
	}
	if !first.deadline {
		t.Fatalf("expected jobs to run with a deadline")
	}
	if lock.released != 1 || lock.held {
		t.Fatalf("expected lock to be released after the cycle")
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "order-abandon"}
	svc, err := NewService(ServiceParams{
		Logger:   quietLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{held: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job to be skipped, ran %d", job.runs)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "outbox-retention"}
	svc, err := NewService(ServiceParams{
		Logger:   quietLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{},
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
	if job.runs != 1 {
		t.Fatalf("expected the initial cycle to run once, ran %d", job.runs)
	}
}

func TestNewServiceRequiresLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: quietLogger()}); err == nil {
		t.Fatal("expected error without a lock")
	}
}
