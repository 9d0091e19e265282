// Package sectioncache holds the process-wide section list shared by every
// admin consumer. One Cache is created at startup and injected wherever the
// list is read or mutated, so all consumers observe the same state.
package sectioncache

import (
	"context"
	"fmt"
	"sync"

	"github.com/eringen/printshop/homepage"
)

// Loader fetches the authoritative section list, sorted by position.
type Loader func(ctx context.Context) ([]homepage.Section, error)

// State is the cache contents. Sections is nil until the first successful
// load; a loaded empty list is non-nil.
type State struct {
	Sections []homepage.Section
	Fetching bool
	Err      error
}

func (s State) clone() State {
	s.Sections = homepage.CloneSections(s.Sections)
	return s
}

// View is the consumer-facing projection of State.
type View struct {
	Sections   []homepage.Section `json:"sections"`
	IsLoading  bool               `json:"isLoading"`
	IsFetching bool               `json:"isFetching"`
	Err        error              `json:"-"`
}

// Listener is called after every state transition.
type Listener func(State)

type subscriber struct {
	id int
	fn Listener
}

// Cache is safe for concurrent use. Listeners run synchronously on the
// goroutine that caused the transition, in registration order, after the
// lock is released.
type Cache struct {
	load Loader

	mu     sync.Mutex
	state  State
	subs   []subscriber
	nextID int
}

// New creates an empty cache backed by load.
func New(load Loader) *Cache {
	return &Cache{load: load}
}

// Snapshot returns a deep copy of the current state.
func (c *Cache) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// View returns the current state as seen by consumers.
func (c *Cache) View() View {
	s := c.Snapshot()
	return View{
		Sections:   s.Sections,
		IsLoading:  s.Sections == nil && s.Err == nil,
		IsFetching: s.Fetching,
		Err:        s.Err,
	}
}

// Subscribe registers fn and returns a function that removes it.
func (c *Cache) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Fetch loads the section list. It does nothing while another fetch is in
// flight, or when data is already loaded and force is false. Failures are
// recorded in State.Err and previously loaded sections are kept.
func (c *Cache) Fetch(ctx context.Context, force bool) {
	c.mu.Lock()
	if c.state.Fetching || (c.state.Sections != nil && !force) {
		c.mu.Unlock()
		return
	}
	c.state.Fetching = true
	c.publishLocked()

	sections, err := c.safeLoad(ctx)

	c.mu.Lock()
	c.state.Fetching = false
	if err != nil {
		c.state.Err = err
	} else {
		if sections == nil {
			sections = []homepage.Section{}
		}
		c.state.Sections = sections
		c.state.Err = nil
	}
	c.publishLocked()
}

// Revalidate forces a fetch regardless of cached data.
func (c *Cache) Revalidate(ctx context.Context) {
	c.Fetch(ctx, true)
}

// Mutate applies an optimistic update. fn receives a deep copy of the
// current sections (nil if never loaded) and its result replaces the whole
// list. Concurrent mutations apply in lock order; nothing is merged.
func (c *Cache) Mutate(fn func(prev []homepage.Section) []homepage.Section) {
	c.mu.Lock()
	next := fn(homepage.CloneSections(c.state.Sections))
	c.state.Sections = homepage.CloneSections(next)
	c.publishLocked()
}

// Replace sets the section list outright. Replace(nil) invalidates the
// cache so the next Fetch loads again.
func (c *Cache) Replace(sections []homepage.Section) {
	c.mu.Lock()
	c.state.Sections = homepage.CloneSections(sections)
	c.publishLocked()
}

// Invalidate drops the cached list.
func (c *Cache) Invalidate() {
	c.Replace(nil)
}

// ReportError records a failed write. Sections are left as they are.
func (c *Cache) ReportError(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.state.Err = err
	c.publishLocked()
}

// DismissError clears the recorded error.
func (c *Cache) DismissError() {
	c.mu.Lock()
	c.state.Err = nil
	c.publishLocked()
}

// publishLocked takes a snapshot, releases the lock held by the caller and
// notifies listeners.
func (c *Cache) publishLocked() {
	snap := c.state.clone()
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(snap.clone())
	}
}

func (c *Cache) safeLoad(ctx context.Context) (sections []homepage.Section, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sectioncache: loader panic: %v", r)
		}
	}()
	return c.load(ctx)
}
