package navsys

import (
	"context"
	"fmt"
	"sync"

	"github.com/milk9111/gravnav/pathfind"
)

type TicketState int

const (
	Pending TicketState = iota
	Running
	Done
	Cancelled
)

func (s TicketState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("TicketState(%d)", int(s))
}

// Outcome is what a worker hands back for a ticket.
type Outcome struct {
	Result *pathfind.Result
	Err    error
}

// Ticket tracks one asynchronous path request. A single worker produces at
// most one Outcome and the owner consumes it. Once Cancel returns true
// nothing is ever sent.
type Ticket struct {
	ID string

	req    pathfind.Request
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   TicketState
	outcome Outcome
	result  chan Outcome
	done    chan struct{}
}

func newTicket(parent context.Context, req pathfind.Request) *Ticket {
	ctx, cancel := context.WithCancel(parent)
	return &Ticket{
		ID:     req.ID,
		req:    req,
		ctx:    ctx,
		cancel: cancel,
		result: make(chan Outcome, 1),
		done:   make(chan struct{}),
	}
}

func (t *Ticket) Request() pathfind.Request {
	return t.req
}

// Result is the handoff channel. It receives exactly one Outcome unless the
// ticket is cancelled, in which case it receives nothing.
func (t *Ticket) Result() <-chan Outcome {
	return t.result
}

// Done is closed once the ticket is delivered or cancelled.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

func (t *Ticket) State() TicketState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Poll returns the current state and, when Done, the outcome.
func (t *Ticket) Poll() (TicketState, Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.outcome
}

// Wait blocks until the ticket finishes or ctx ends.
func (t *Ticket) Wait(ctx context.Context) (*pathfind.Result, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	state, out := t.Poll()
	if state == Cancelled {
		return nil, fmt.Errorf("%w: request %s", pathfind.ErrCancelled, t.ID)
	}
	return out.Result, out.Err
}

// Cancel stops the request. It reports false when the outcome was already
// delivered or the ticket was already cancelled.
func (t *Ticket) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Done || t.state == Cancelled {
		return false
	}
	t.state = Cancelled
	t.cancel()
	close(t.done)
	return true
}

func (t *Ticket) start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Pending {
		return false
	}
	t.state = Running
	return true
}

func (t *Ticket) deliver(out Outcome) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Cancelled || t.state == Done {
		return false
	}
	t.state = Done
	t.outcome = out
	t.result <- out
	close(t.done)
	t.cancel()
	return true
}
