package framework

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
)

// DefaultInterval is the base tick of a Loop when Interval is not set.
const DefaultInterval = time.Millisecond

// Loop is a cooperative scheduler. Every tick it walks the priority
// levels from PrLvTop to PrLvIdle and runs each task whose period has
// elapsed. Tasks never preempt each other.
type Loop struct {
	Interval time.Duration
	Clock    clock.Clock

	tasks   [PriorityLevels][]*Task
	runners []Runnable

	lock     sync.Mutex
	wakeUpCh chan struct{}
}

// Task is a Controller registered with a priority and a period.
type Task struct {
	Name       string
	Priority   int
	Period     time.Duration
	Controller Controller

	next    time.Time
	started bool
	runs    uint64
	errs    uint64
}

// TaskInfo is a snapshot of a task used for diagnostics.
type TaskInfo struct {
	Name     string
	Priority int
	Period   time.Duration
	Runs     uint64
	Errors   uint64
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopIteration struct {
	loop          *Loop
	ctx           context.Context
	time          time.Time
	priorityLevel int
}

// NewLoop creates a Loop with the DefaultInterval and the wall clock.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval, Clock: clock.New()}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// Register schedules ctl at priorityLevel every period. A zero period
// runs the task on every tick. If ctl implements Periodic, its Period
// is consulted after each run instead of the registered one.
func (l *Loop) Register(name string, priorityLevel int, period time.Duration, ctl Controller) *Task {
	if priorityLevel < 0 {
		priorityLevel = 0
	} else if priorityLevel >= PriorityLevels {
		priorityLevel = PriorityLevels - 1
	}
	task := &Task{Name: name, Priority: priorityLevel, Period: period, Controller: ctl}
	l.lock.Lock()
	l.tasks[priorityLevel] = append(l.tasks[priorityLevel], task)
	l.lock.Unlock()
	if runner, ok := ctl.(Runnable); ok {
		l.runners = append(l.runners, runner)
	}
	return task
}

// Tasks returns a snapshot of all registered tasks in dispatch order.
func (l *Loop) Tasks() []TaskInfo {
	l.lock.Lock()
	defer l.lock.Unlock()
	var infos []TaskInfo
	for _, lst := range l.tasks {
		for _, task := range lst {
			infos = append(infos, TaskInfo{
				Name:     task.Name,
				Priority: task.Priority,
				Period:   task.period(),
				Runs:     task.runs,
				Errors:   task.errs,
			})
		}
	}
	return infos
}

func (l *Loop) clock() clock.Clock {
	if l.Clock == nil {
		l.Clock = clock.New()
	}
	return l.Clock
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	l.lock.Lock()
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}
	l.lock.Unlock()

	runner := NewRunnerWith(ctx)
	runner.Go(l.runners...)
	defer runner.Wait()

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clk := l.clock()
	ticker := clk.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.RunOnce(ctx, clk.Now())
		case <-l.wakeUpCh:
			l.RunOnce(ctx, clk.Now())
		}
	}
}

// RunOnce performs a single scheduling pass at now. It returns the
// number of tasks dispatched.
func (l *Loop) RunOnce(ctx context.Context, now time.Time) int {
	l.lock.Lock()
	defer l.lock.Unlock()
	iter := &loopIteration{loop: l, ctx: ctx, time: now}
	var count int
	for i := 0; i < PriorityLevels; i++ {
		iter.priorityLevel = i
		for _, task := range l.tasks[i] {
			if !task.due(now) {
				continue
			}
			task.run(iter)
			count++
		}
	}
	return count
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

func (t *Task) period() time.Duration {
	if p, ok := t.Controller.(Periodic); ok {
		return p.Period()
	}
	return t.Period
}

func (t *Task) due(now time.Time) bool {
	return !t.started || !now.Before(t.next)
}

func (t *Task) run(iter *loopIteration) {
	if err := t.Controller.Control(iter); err != nil {
		t.errs++
		glog.Errorf("task %s error: %v", t.Name, err)
	}
	t.runs++
	period := t.period()
	if !t.started || period <= 0 {
		t.started = true
		t.next = iter.time.Add(period)
		return
	}
	t.next = t.next.Add(period)
	if !t.next.After(iter.time) {
		// overran, skip the missed slots.
		t.next = iter.time.Add(period)
	}
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Time() time.Time {
	return t.time
}

func (t *loopIteration) PriorityLevel() int {
	return t.priorityLevel
}

func (t *loopIteration) TriggerNext() {
	t.loop.TriggerNext()
}

// Rephase implements LoopControl.
func (t *loopIteration) Rephase(tasks ...*Task) {
	for _, task := range tasks {
		task.started = true
		task.next = t.time.Add(task.period())
	}
}
