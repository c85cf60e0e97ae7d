// Package share provides the values exchanged between scheduled tasks:
// single-slot cells where the latest write wins, and bounded queues.
package share

import (
	"strconv"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/atomic"
)

// Share is anything listed in the diagnostics table.
type Share interface {
	Name() string
	String() string
}

// Float is a single-slot float64 cell.
type Float struct {
	name string
	v    atomic.Float64
}

// NewFloat creates a Float holding init.
func NewFloat(name string, init float64) *Float {
	s := &Float{name: name}
	s.v.Store(init)
	return s
}

// Put replaces the value.
func (s *Float) Put(v float64) { s.v.Store(v) }

// Get returns the latest value.
func (s *Float) Get() float64 { return s.v.Load() }

// Name implements Share.
func (s *Float) Name() string { return s.name }

func (s *Float) String() string { return strconv.FormatFloat(s.Get(), 'g', -1, 64) }

// Int is a single-slot int64 cell.
type Int struct {
	name string
	v    atomic.Int64
}

// NewInt creates an Int holding init.
func NewInt(name string, init int64) *Int {
	s := &Int{name: name}
	s.v.Store(init)
	return s
}

// Put replaces the value.
func (s *Int) Put(v int64) { s.v.Store(v) }

// Get returns the latest value.
func (s *Int) Get() int64 { return s.v.Load() }

// Name implements Share.
func (s *Int) Name() string { return s.name }

func (s *Int) String() string { return strconv.FormatInt(s.Get(), 10) }

// Flag is a single-slot boolean cell.
type Flag struct {
	name string
	v    atomic.Bool
}

// NewFlag creates a Flag holding init.
func NewFlag(name string, init bool) *Flag {
	s := &Flag{name: name}
	s.v.Store(init)
	return s
}

// Put replaces the value.
func (s *Flag) Put(v bool) { s.v.Store(v) }

// Get returns the latest value.
func (s *Flag) Get() bool { return s.v.Load() }

// Name implements Share.
func (s *Flag) Name() string { return s.name }

func (s *Flag) String() string { return strconv.FormatBool(s.Get()) }

// Registry keeps the shares of a program for diagnostics.
type Registry struct {
	lock   sync.Mutex
	shares []Share
}

// Add registers shares.
func (r *Registry) Add(shares ...Share) *Registry {
	r.lock.Lock()
	r.shares = append(r.shares, shares...)
	r.lock.Unlock()
	return r
}

// Shares returns registered shares in registration order.
func (r *Registry) Shares() []Share {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Share(nil), r.shares...)
}

// Table renders all shares with their current values.
func (r *Registry) Table() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Share", "Value"})
	for _, s := range r.Shares() {
		t.AppendRow(table.Row{s.Name(), s.String()})
	}
	return t.Render()
}
