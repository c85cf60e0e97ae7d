package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Controller is one scheduled unit of work. Control runs a single tick
// and must return without waiting on anything: waiting is expressed by
// returning and being called again on the next tick.
type Controller interface {
	Control(ControlContext) error
}

// Periodic is implemented by controllers whose period may change while
// the loop is running. When present it overrides the registered period.
type Periodic interface {
	Period() time.Duration
}

// TimeSource provides the time for controlling logic.
type TimeSource interface {
	Time() time.Time
}

// ControlContext provides the context of current control
// iteration.
type ControlContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context
	// PriorityLevel gets the current priority level.
	PriorityLevel() int

	LoopControl
}

// LoopControl exposes access to the controlling loop.
type LoopControl interface {
	// TriggerNext schedules the next pass to be executed
	// immediately after the current one.
	TriggerNext()
	// Rephase restarts the period of tasks from the current pass, so
	// their next run is exactly one period from now.
	Rephase(tasks ...*Task)
}

// PriorityLevels is the total levels of priorities.
const PriorityLevels int = 16

// Predefine priority levels
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvControl is the alias of priority level for control tasks.
	PrLvControl = PrLvHigh
	// PrLvComm is the alias of priority level for the host command interface.
	PrLvComm = PrLvNormal
)

// ControlFunc defines the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}

// RunFunc defines the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}
