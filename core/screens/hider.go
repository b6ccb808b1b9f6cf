package screens

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// HiderTag names a visibility predicate.
type HiderTag int

// Built-in tags. NewHidersChecker registers them with predicates that always
// report false; applications override the ones they use.
const (
	OnlyForAdmin HiderTag = iota + 1
	OnlyForBetaTesters
	OnlyForModerators
)

// Hider is an OR-set of tags: a button carrying it stays visible when any
// tag's predicate holds.
type Hider struct {
	tags []HiderTag
}

// NewHider combines tags with OR.
func NewHider(tags ...HiderTag) Hider {
	h := Hider{}
	for _, t := range tags {
		if !slices.Contains(h.tags, t) {
			h.tags = append(h.tags, t)
		}
	}
	return h
}

// Or returns the union of h and other.
func (h Hider) Or(other Hider) Hider {
	return NewHider(append(slices.Clone(h.tags), other.tags...)...)
}

// Tags returns the tags in insertion order.
func (h Hider) Tags() []HiderTag { return slices.Clone(h.tags) }

// Empty reports whether the hider has no tags.
func (h Hider) Empty() bool { return len(h.tags) == 0 }

// Equal reports whether both hiders hold the same tags.
func (h Hider) Equal(other Hider) bool {
	if len(h.tags) != len(other.tags) {
		return false
	}
	for _, t := range h.tags {
		if !slices.Contains(other.tags, t) {
			return false
		}
	}
	return true
}

// CheckFunc evaluates a single tag for the current update.
type CheckFunc func(c *Context) (bool, error)

// HidersChecker maps tags to predicates.
type HidersChecker struct {
	mu     sync.RWMutex
	checks map[HiderTag]CheckFunc
}

func alwaysHidden(*Context) (bool, error) { return false, nil }

// NewHidersChecker returns a checker with the built-in tags registered.
func NewHidersChecker() *HidersChecker {
	return &HidersChecker{checks: map[HiderTag]CheckFunc{
		OnlyForAdmin:       alwaysHidden,
		OnlyForBetaTesters: alwaysHidden,
		OnlyForModerators:  alwaysHidden,
	}}
}

// Register binds fn to tag, replacing any previous predicate.
func (hc *HidersChecker) Register(tag HiderTag, fn CheckFunc) *HidersChecker {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[tag] = fn
	return hc
}

// Run reports whether any of the hider's tags holds. Tags are evaluated in
// order and evaluation stops at the first match.
func (hc *HidersChecker) Run(c *Context, h Hider) (bool, error) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	for _, tag := range h.tags {
		fn, ok := hc.checks[tag]
		if !ok {
			return false, fmt.Errorf("%w: tag %d", ErrHiderIsUnregistered, tag)
		}
		visible, err := fn(c)
		if err != nil {
			return false, fmt.Errorf("screens: hider %d: %w", tag, err)
		}
		if visible {
			return true, nil
		}
	}
	return false, nil
}

var (
	activeChecker atomic.Pointer[HidersChecker]

	namedCheckersMu sync.RWMutex
	namedCheckers   = map[string]*HidersChecker{}
)

// UseHidersChecker installs hc as the process-wide checker. Passing nil
// disables hiders.
func UseHidersChecker(hc *HidersChecker) {
	activeChecker.Store(hc)
}

// ActiveHidersChecker returns the process-wide checker or nil.
func ActiveHidersChecker() *HidersChecker {
	return activeChecker.Load()
}

// RegisterHidersChecker makes hc selectable by name from configuration.
func RegisterHidersChecker(name string, hc *HidersChecker) {
	namedCheckersMu.Lock()
	defer namedCheckersMu.Unlock()
	namedCheckers[name] = hc
}

// LookupHidersChecker resolves a checker registered under name.
func LookupHidersChecker(name string) (*HidersChecker, error) {
	namedCheckersMu.RLock()
	defer namedCheckersMu.RUnlock()
	hc, ok := namedCheckers[name]
	if !ok {
		return nil, fmt.Errorf("%w: hiders checker %q is not registered", ErrImproperlyConfigured, name)
	}
	return hc, nil
}
