package resources

import (
	"fmt"

	"github.com/spaghettifunk/mcengine/engine/core"
)

// Begin marks r as loading. It must be paired with exactly one RunAsync, which
// may happen on another goroutine. A failed or interrupted resource is destroyed
// first, loading always starts from Created or Destroyed.
func Begin(r Resource) error {
	l := r.Base()
	for {
		s := l.State()
		switch s {
		case StateCreated, StateDestroyed:
		case StateFailed, StateInterrupted:
			l.WaitIdle()
			r.Destroy()
			l.state.CompareAndSwap(int32(s), int32(StateDestroyed))
			continue
		default:
			return fmt.Errorf("resource %q cannot start loading from state %s", r.Name(), s)
		}
		if l.state.CompareAndSwap(int32(s), int32(StateLoading)) {
			break
		}
	}
	l.setErr(nil)
	l.inflight.Add(1)
	l.idle.Add(1)
	return nil
}

// RunAsync runs the background half of the load. It is safe to call from a worker.
func RunAsync(r Resource) error {
	l := r.Base()
	defer func() {
		l.inflight.Add(-1)
		l.idle.Done()
	}()

	if l.IsInterrupted() {
		return core.ErrInterrupted
	}
	if err := r.InitAsync(); err != nil {
		if l.IsInterrupted() {
			return core.ErrInterrupted
		}
		l.setErr(err)
		l.state.Store(int32(StateFailed))
		return err
	}
	if !l.state.CompareAndSwap(int32(StateLoading), int32(StateAsyncReady)) {
		return core.ErrInterrupted
	}
	return nil
}

// LoadAsync is Begin followed by RunAsync on the calling goroutine.
func LoadAsync(r Resource) error {
	if err := Begin(r); err != nil {
		return err
	}
	return RunAsync(r)
}

// Finalize runs Init on the calling (main) goroutine. Init never runs before
// InitAsync has completed.
func Finalize(r Resource) error {
	l := r.Base()
	if !l.state.CompareAndSwap(int32(StateAsyncReady), int32(StateFinalizing)) {
		if l.IsInterrupted() {
			return core.ErrInterrupted
		}
		return fmt.Errorf("%w: %q is %s", core.ErrNotReady, r.Name(), l.State())
	}
	if err := r.Init(); err != nil {
		l.setErr(err)
		l.state.Store(int32(StateFailed))
		return err
	}
	l.state.Store(int32(StateReady))
	for _, fn := range l.takeCallbacks() {
		fn()
	}
	return nil
}

// Load performs a complete synchronous load.
func Load(r Resource) error {
	if err := LoadAsync(r); err != nil {
		return err
	}
	return Finalize(r)
}

// Release interrupts any pending load, waits for it to wind down and destroys r.
// Calling it twice is harmless.
func Release(r Resource) {
	l := r.Base()
	l.Interrupt()
	l.WaitIdle()
	switch l.State() {
	case StateCreated, StateDestroyed:
		return
	}
	r.Destroy()
	l.state.Store(int32(StateDestroyed))
}

// Reload releases r and loads it again synchronously.
func Reload(r Resource) error {
	Release(r)
	return Load(r)
}
