package systems

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/mcengine/engine/core"
)

/**
 * @brief A unit of background work. OnStart runs on a worker; OnComplete or OnFailure
 * follow on the same worker depending on its result, then OnCompletionCallback.
 */
type JobTask struct {
	Name                 string
	OnStart              func() error
	OnComplete           func()
	OnFailure            func(err error)
	OnCompletionCallback func()
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	err := js.execute(job)
	if err != nil {
		core.LogError("job %s failed: %s", job.Name, err)
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
	} else if job.OnComplete != nil {
		job.OnComplete()
	}

	// Call the completion callback if set
	if job.OnCompletionCallback != nil {
		job.OnCompletionCallback()
	}
}

// execute runs OnStart, turning a panic into an error so a broken job can't kill the worker.
func (js *JobSystem) execute(job JobTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	if job.OnStart == nil {
		return nil
	}
	return job.OnStart()
}

func (js *JobSystem) NumWorkers() int { return js.numWorkers }

/**
 * @brief Shuts the job system down. Queued jobs still run, Shutdown returns once every
 * worker exited. Calling it again is a no-op.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mu.Unlock()

	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while the queue
 * is full, until ctx is done.
 * @returns core.ErrClosed after Shutdown, or the context error.
 */
func (js *JobSystem) Submit(ctx context.Context, jt JobTask) error {
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.closed {
		return core.ErrClosed
	}
	select {
	case js.jobQueue <- jt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
