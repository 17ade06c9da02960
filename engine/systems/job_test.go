package systems

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spaghettifunk/mcengine/engine/core"
)

func TestNewJobSystemValidation(t *testing.T) {
	if _, err := NewJobSystem(0, 1); err != ErrNoWorkers {
		t.Fatalf("err = %v, want ErrNoWorkers", err)
	}
	if _, err := NewJobSystem(1, -1); err != ErrNegativeChannelSize {
		t.Fatalf("err = %v, want ErrNegativeChannelSize", err)
	}
}

func TestSubmitRunsEveryJob(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	if err != nil {
		t.Fatal(err)
	}
	var started, completed, callbacks atomic.Int32
	for i := 0; i < 100; i++ {
		err := js.Submit(context.Background(), JobTask{
			Name:                 "count",
			OnStart:              func() error { started.Add(1); return nil },
			OnComplete:           func() { completed.Add(1) },
			OnCompletionCallback: func() { callbacks.Add(1) },
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	js.Shutdown()
	if started.Load() != 100 || completed.Load() != 100 || callbacks.Load() != 100 {
		t.Fatalf("started=%d completed=%d callbacks=%d", started.Load(), completed.Load(), callbacks.Load())
	}
}

func TestFailuresAndPanics(t *testing.T) {
	js, err := NewJobSystem(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	var failures []error
	done := make(chan struct{}, 2)
	for _, start := range []func() error{
		func() error { return boom },
		func() error { panic("bad job") },
	} {
		js.Submit(context.Background(), JobTask{
			Name:       "fail",
			OnStart:    start,
			OnComplete: func() { t.Error("failed job completed") },
			OnFailure:  func(err error) { failures = append(failures, err) },
			OnCompletionCallback: func() {
				done <- struct{}{}
			},
		})
	}
	<-done
	<-done
	js.Shutdown()
	if len(failures) != 2 || !errors.Is(failures[0], boom) || failures[1] == nil {
		t.Fatalf("failures = %v", failures)
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	js.Shutdown()
	js.Shutdown()
	if err := js.Submit(context.Background(), JobTask{Name: "late"}); !errors.Is(err, core.ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestSubmitHonorsContext(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	gate := make(chan struct{})
	running := make(chan struct{})
	js.Submit(context.Background(), JobTask{
		Name:    "block",
		OnStart: func() error { close(running); <-gate; return nil },
	})
	<-running

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := js.Submit(ctx, JobTask{Name: "waiting"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	close(gate)
	js.Shutdown()
}
