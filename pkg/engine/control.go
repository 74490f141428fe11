package engine

import "sync"

// controlAction is what a worker should do at the next row boundary.
type controlAction int

const (
	actionContinue controlAction = iota
	actionPause
	actionCancel
)

// control is the explicit pause/cancel signal for one running job. The
// manager raises flags from control operations; the owning worker
// consults them only at row boundaries, so a row is either fully
// processed or not attempted. Cancel wins over pause when both are
// raised.
type control struct {
	mu        sync.Mutex
	paused    bool
	cancelled bool
}

func (c *control) requestPause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

func (c *control) requestCancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
}

func (c *control) check() controlAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.cancelled:
		return actionCancel
	case c.paused:
		return actionPause
	}
	return actionContinue
}
