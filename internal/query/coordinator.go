package query

import (
	"context"
	"sync"
	"time"

	"github.com/tunebridge/console/internal/models"
)

// Fetcher loads one page for a state.
type Fetcher func(ctx context.Context, state State) (*models.EntityPage, error)

// Delivery is one fetch result handed to the view.
type Delivery struct {
	Generation uint64
	State      State
	Page       *models.EntityPage
	Err        error
}

// Coordinator owns the query state of one list view. Search changes are
// debounced; other changes fetch at once. Every fetch is stamped with a
// generation and only the newest generation is ever delivered, so a slow
// stale response never overwrites a newer one.
type Coordinator struct {
	fetch    Fetcher
	deliver  func(Delivery)
	debounce time.Duration

	mu       sync.Mutex
	ctx      context.Context
	stop     context.CancelFunc
	state    State
	timer    *time.Timer
	gen      uint64
	inflight context.CancelFunc
	closed   bool

	deliverMu sync.Mutex
	delivered uint64
}

func NewCoordinator(ctx context.Context, initial State, debounce time.Duration, fetch Fetcher, deliver func(Delivery)) *Coordinator {
	ctx, stop := context.WithCancel(ctx)
	return &Coordinator{
		fetch:    fetch,
		deliver:  deliver,
		debounce: debounce,
		ctx:      ctx,
		stop:     stop,
		state:    initial,
	}
}

// State returns the current query state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetSearch records a keystroke. Each call replaces the pending timer, so
// a burst of keystrokes inside the window produces one fetch carrying the
// last value.
func (c *Coordinator) SetSearch(search string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.state = c.state.WithSearch(search)
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.debounce <= 0 {
		c.dispatchLocked()
		return
	}
	var t *time.Timer
	t = time.AfterFunc(c.debounce, func() { c.fire(t) })
	c.timer = t
}

func (c *Coordinator) SetStatus(status models.Status) {
	c.apply(func(s State) State { return s.WithStatus(status) })
}

func (c *Coordinator) SetCategory(category models.Category) {
	c.apply(func(s State) State { return s.WithCategory(category) })
}

func (c *Coordinator) SetSortOrder(order models.SortOrder) {
	c.apply(func(s State) State { return s.WithSortOrder(order) })
}

func (c *Coordinator) SetPage(page int) {
	c.apply(func(s State) State { return s.WithPage(page) })
}

func (c *Coordinator) SetLimit(limit int) {
	c.apply(func(s State) State { return s.WithLimit(limit) })
}

// Refresh refetches the current state, e.g. after a mutation.
func (c *Coordinator) Refresh() {
	c.apply(func(s State) State { return s })
}

// Close drops any pending or in-flight fetch and waits for a delivery that
// is already running. Nothing is delivered after Close returns.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	c.mu.Unlock()
	c.stop()

	c.deliverMu.Lock()
	c.deliverMu.Unlock()
}

func (c *Coordinator) apply(change func(State) State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state = change(c.state)
	c.dispatchLocked()
}

// fire runs when a debounce window elapses. A timer superseded after it
// already started waiting on the lock is ignored.
func (c *Coordinator) fire(t *time.Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.timer != t {
		return
	}
	c.timer = nil
	c.dispatchLocked()
}

func (c *Coordinator) dispatchLocked() {
	c.gen++
	gen := c.gen
	state := c.state

	if c.inflight != nil {
		c.inflight()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.inflight = cancel

	go func() {
		defer cancel()
		page, err := c.fetch(ctx, state)
		c.publish(Delivery{Generation: gen, State: state, Page: page, Err: err})
	}()
}

// current reports the newest generation and whether the coordinator is
// still open.
func (c *Coordinator) current() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, !c.closed
}

// publish must not be called with mu held; deliver runs under deliverMu
// only, so Close can wait for it.
func (c *Coordinator) publish(d Delivery) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	gen, open := c.current()
	if !open || d.Generation != gen || d.Generation <= c.delivered {
		return
	}
	c.delivered = d.Generation
	c.deliver(d)
}
