package pool

import (
	"errors"

	"github.com/utkarsh5026/lanepool/internal/lanes"
)

var (
	// ErrNoPriorities is returned by New when priorityCount < 1.
	ErrNoPriorities = lanes.ErrNoLanes

	// ErrInvalidPriority is returned by Enqueue for a priority outside
	// [0, priorityCount).
	ErrInvalidPriority = lanes.ErrInvalidPriority

	ErrAlreadyRunning  = errors.New("pool: already running")
	ErrStopping        = errors.New("pool: stop in progress")
	ErrNilFunc         = errors.New("pool: task function is nil")
	ErrPoolStopped     = errors.New("pool: not running")
	ErrShutdownTimeout = errors.New("error in shutting down: timeout reached")

	// ErrTaskPanic is wrapped by the Err of a Result whose task panicked.
	ErrTaskPanic = errors.New("worker panic")
)
