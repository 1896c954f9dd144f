// Package gogroup provides API to manage goroutines.
package gogroup

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

type GoState int

const (
	GoStarted GoState = iota
	GoFinished
)

var (
	// Set a callback function to be run whenever a goroutine starts or
	// completes
	Callback func(GoState)
)

// Func is the unit of work run by a group. The group is passed in so that
// the routine can watch Done() and launch children.
type Func func(GoGroup) error

/* There are two problems with goroutines which this package is intended to help solve:
 *
 *   1) When a goroutine panic()s and it is not caught, the entire application
 *   dies. This is a reasonable default behavior, but often one wants some
 *   other behavior.
 *
 *   2) One often launches a group of goroutines which cooperate. Should one of
 *   those goroutines die prematurely -- for whatever reason -- the others may
 *   simply stall infinitely, never making progress or releasing their
 *   resources.
 *
 * A GoGroup is a group of managed goroutines. When a new routine is launched,
 * it is protected from panic()s reaching the go runtime; instead, its panic()s
 * are caught, converted to errors and dealt with. Errors can simply be logged
 * with the routine restarted, or an error can lead to the entire group be
 * canceled.
 */
type GoGroup interface {
	context.Context

	// Cancel this group. Try to get all the children to exit
	Cancel(error)

	// Has this group been canceled?
	Canceled() bool

	// Launch a function in a new goroutine, but protected from panic()s
	// crashing everything. If it panic()s or returns an error, cancel this
	// Group, causing it to exit. If it exits normally, do nothing.
	Go(Func)

	// Launch a function in a new goroutine, but protected from panic()s
	// crashing everything. If it exits for any reason, restart it.
	GoRestart(Func)

	// Run a function in the current goroutine, but protected from panic()s
	// bubbling up beyond this point
	Run(Func)

	// Wait for all group threads to exit. Return all errors they threw
	Wait() []error

	// Wait for all group threads to exit, but give up after d. Returns false
	// if the routines were still running when the time ran out.
	WaitTimeout(d time.Duration) bool

	// Iterate through the errors which have been thrown so far. Nil when no
	// more errors
	Error() error

	// Set a callback function to be run whenever an error is encountered
	ErrCallback(func(error))

	// Create a group which is a child context. Errors/panic()s in this child
	// do not affect the parent.
	Child(string) GoGroup

	Name() string
}

// An error converted from a recover()ed panic()
type PanicError struct {
	Msg   interface{}
	Stack string
}

func (pe PanicError) Error() string {
	if s, ok := pe.Msg.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", pe.Msg)
}

// Create a new group. Both arguments optional
func New(ctxt context.Context, name string) GoGroup {
	if ctxt == nil {
		ctxt = context.Background()
	}
	nctxt, cancel := context.WithCancel(ctxt)

	ret := group{
		Context: nctxt,
		name:    name,
		cancel:  cancel,
	}
	ret.ErrCallback(nil)
	return &ret
}

// Default implementation of a GoGroup
type group struct {
	context.Context
	sync.Mutex

	name   string
	cancel context.CancelFunc

	wg sync.WaitGroup

	errors      []error
	errCallback func(error)
}

// Cancel this group. Try to get all the children to exit
func (g *group) Cancel(err error) {
	if err != nil {
		g.callback()(err)
	}
	g.cancel()
}

// Has this group been canceled?
func (g *group) Canceled() bool {
	select {
	case <-g.Done():
		return true
	default:
		return false
	}
}

func (g *group) Go(f Func) {
	g.check(f)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.run(f, true)
	}()
}

func (g *group) GoRestart(f Func) {
	g.check(f)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		for !g.Canceled() {
			g.run(f, false)
		}
	}()
}

func (g *group) Run(f Func) {
	g.check(f)
	g.wg.Add(1)
	defer g.wg.Done()
	g.run(f, true)
}

func (g *group) check(f Func) {
	if f == nil {
		panic(fmt.Sprintf("Cannot run nil function in group %q", g.name))
	}
}

func (g *group) Name() string {
	return g.name
}

func (g *group) run(f Func, kill bool) {
	defer g.catch(kill)

	if Callback != nil {
		Callback(GoStarted)
	}
	defer func() {
		if Callback != nil {
			Callback(GoFinished)
		}
	}()

	if err := f(g); err != nil {
		if kill {
			g.Cancel(err)
		} else {
			g.callback()(err)
		}
	}
}

// Use this in a defer to catch panic()s
func (g *group) catch(kill bool) {
	if p := recover(); p != nil {
		pe := PanicError{
			Msg:   p,
			Stack: string(debug.Stack()),
		}

		if kill {
			g.Cancel(pe)
		} else {
			g.callback()(pe)
		}
	}
}

func (g *group) Wait() []error {
	g.wg.Wait()
	g.Lock()
	defer g.Unlock()
	ret := g.errors
	g.errors = nil
	return ret
}

func (g *group) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func (g *group) Error() error {
	g.Lock()
	defer g.Unlock()
	if len(g.errors) == 0 {
		return nil
	}
	err := g.errors[0]
	g.errors = g.errors[1:]
	return err
}

func (g *group) Child(name string) GoGroup {
	var ret *group
	if name == "" {
		ret = New(g, g.name+"-child").(*group)
	} else {
		ret = New(g, g.name+"-"+name).(*group)
	}
	ret.ErrCallback(g.callback())
	return ret
}

// The default error handler
func (g *group) errorAppend(err error) {
	g.Lock()
	g.errors = append(g.errors, err)
	g.Unlock()
}

func (g *group) ErrCallback(f func(error)) {
	if f == nil {
		f = g.errorAppend
	}

	g.Lock()
	defer g.Unlock()
	g.errCallback = f
}

func (g *group) callback() func(error) {
	g.Lock()
	defer g.Unlock()
	return g.errCallback
}

func (g *group) String() string {
	return fmt.Sprintf("gogroup(%v)", g.name)
}
