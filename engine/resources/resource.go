package resources

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Type tags the concrete kind of a resource. Managers keep one vector per type.
type Type int

/** @brief Pre-defined resource types. */
const (
	TypeImage Type = iota
	TypeFont
	TypeBitmapFont
	TypeTextureAtlas
	TypeSound
	TypeShader
	TypeRenderTarget
	TypeVertexArray
)

func (t Type) String() string {
	switch t {
	case TypeImage:
		return "image"
	case TypeFont:
		return "font"
	case TypeBitmapFont:
		return "bitmap font"
	case TypeTextureAtlas:
		return "texture atlas"
	case TypeSound:
		return "sound"
	case TypeShader:
		return "shader"
	case TypeRenderTarget:
		return "render target"
	case TypeVertexArray:
		return "vertex array"
	}
	return "unknown"
}

// State is the lifecycle position of a resource. It lives in a single atomic so
// every transition is a compare-and-swap.
type State int32

const (
	StateCreated State = iota
	// InitAsync is queued or running.
	StateLoading
	// InitAsync finished, Init has not run yet.
	StateAsyncReady
	// Init is running on the main thread.
	StateFinalizing
	StateReady
	// InitAsync or Init returned an error. Terminal until a reload.
	StateFailed
	StateInterrupted
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLoading:
		return "loading"
	case StateAsyncReady:
		return "async ready"
	case StateFinalizing:
		return "finalizing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateInterrupted:
		return "interrupted"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

/**
 * @brief Every loadable asset (image, font, atlas...) implements Resource.
 * InitAsync must not touch GPU state and may run on a worker goroutine.
 * Init runs on the main thread once InitAsync has completed. Destroy releases
 * everything and must tolerate being called on a partially loaded resource.
 */
type Resource interface {
	Base() *Lifecycle
	Type() Type
	Name() string
	FilePath() string
	IsReady() bool

	InitAsync() error
	Init() error
	Destroy()
}

// Lifecycle holds the identity and readiness state shared by all resources.
// Concrete resources embed it.
type Lifecycle struct {
	id       string
	name     string
	filePath string

	state atomic.Int32

	// number of Begin calls not yet matched by the end of RunAsync
	inflight atomic.Int32
	idle     sync.WaitGroup

	mu      sync.Mutex
	err     error
	onReady []func()
}

func NewLifecycle(name, filePath string) *Lifecycle {
	return &Lifecycle{
		id:       uuid.NewString(),
		name:     name,
		filePath: filePath,
	}
}

func (l *Lifecycle) Base() *Lifecycle { return l }

// ID is unique per instance, unlike Name which may be empty.
func (l *Lifecycle) ID() string { return l.id }

func (l *Lifecycle) Name() string { return l.name }

func (l *Lifecycle) FilePath() string { return l.filePath }

func (l *Lifecycle) State() State { return State(l.state.Load()) }

// IsReady reports whether the resource is usable on the main thread.
func (l *Lifecycle) IsReady() bool { return l.State() == StateReady }

// IsAsyncReady reports whether the background half of the load has completed.
func (l *Lifecycle) IsAsyncReady() bool {
	switch l.State() {
	case StateAsyncReady, StateFinalizing, StateReady:
		return true
	}
	return false
}

func (l *Lifecycle) IsInterrupted() bool { return l.State() == StateInterrupted }

// IsBusy reports whether InitAsync is queued or running.
func (l *Lifecycle) IsBusy() bool { return l.inflight.Load() > 0 }

// Interrupt cooperatively cancels a load in flight. The running InitAsync is
// expected to poll IsInterrupted and bail out. Returns false if nothing was loading.
func (l *Lifecycle) Interrupt() bool {
	for {
		s := l.State()
		if s != StateLoading && s != StateAsyncReady {
			return false
		}
		if l.state.CompareAndSwap(int32(s), int32(StateInterrupted)) {
			return true
		}
	}
}

// WaitIdle blocks until no InitAsync is queued or running for this resource.
func (l *Lifecycle) WaitIdle() {
	l.idle.Wait()
}

// Err returns the error of the last failed load, if any.
func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// OnReady registers fn to run on the main thread once Init succeeded. If the
// resource is already ready fn runs immediately.
func (l *Lifecycle) OnReady(fn func()) {
	if l.IsReady() {
		fn()
		return
	}
	l.mu.Lock()
	l.onReady = append(l.onReady, fn)
	l.mu.Unlock()
}

func (l *Lifecycle) setErr(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

func (l *Lifecycle) takeCallbacks() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cbs := l.onReady
	l.onReady = nil
	return cbs
}
