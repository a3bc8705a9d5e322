// Package mapfocus centers the map on a saved venue and reveals its popup
// once the viewport has settled.
package mapfocus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	"github.com/couchcryptid/poolpocket-venues/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Focus timing and zoom.
const (
	AnimationDuration = 1000 * time.Millisecond
	RevealDelay       = 1500 * time.Millisecond
	FocusSpan         = 0.02
)

// State is the controller's position in the focus cycle.
type State int

const (
	Idle State = iota
	Animating
	Revealed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Animating:
		return "animating"
	case Revealed:
		return "revealed"
	default:
		return "unknown"
	}
}

// MapView is the imperative handle of the rendered map. Implementations must
// not call back into the Controller from these methods.
type MapView interface {
	AnimateToRegion(region domain.Region, duration time.Duration)
	ShowPopup(key string)
}

// Controller drives Idle -> Animating -> Revealed for one focus request at a
// time. A newer request cancels the pending reveal of an older one.
type Controller struct {
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	view    MapView
	state   State
	gen     uint64
	pending clockwork.Timer
}

// NewController creates a Controller with no view mounted.
func NewController(clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	return &Controller{clock: clock, logger: logger, metrics: metrics}
}

// Mount attaches the map view that later requests will drive.
func (c *Controller) Mount(view MapView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = view
}

// Unmount detaches the view and drops any pending reveal.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelPendingLocked()
	c.view = nil
	c.state = Idle
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Focus handles a request and returns the resulting state. Requests without
// usable coordinates, or arriving before a view is mounted, are ignored and
// leave the controller Idle.
func (c *Controller) Focus(req domain.FocusRequest) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPendingLocked()

	if req.Target == nil || !req.Target.Valid() || c.view == nil {
		c.state = Idle
		c.metrics.FocusRequests.WithLabelValues("ignored").Inc()
		c.logger.Debug("focus request ignored",
			"has_target", req.Target != nil,
			"mounted", c.view != nil,
		)
		return c.state
	}

	target := *req.Target
	c.view.AnimateToRegion(domain.RegionAround(target, FocusSpan), AnimationDuration)
	c.state = Animating
	c.metrics.FocusRequests.WithLabelValues("animating").Inc()

	gen := c.gen
	key := req.PopupKey
	c.pending = c.clock.AfterFunc(RevealDelay, func() { c.reveal(gen, key) })
	return c.state
}

func (c *Controller) reveal(gen uint64, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.view == nil || c.state != Animating {
		return
	}
	c.view.ShowPopup(key)
	c.state = Revealed
	c.pending = nil
}

// cancelPendingLocked starts a new generation so an already-fired reveal
// callback from an older request becomes a no-op.
func (c *Controller) cancelPendingLocked() {
	c.gen++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}
