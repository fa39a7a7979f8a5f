package workflow

import "sync"

// cancelFlags holds cooperative cancel requests, checked between chunks.
type cancelFlags struct {
	mu  sync.Mutex
	all bool
	ids map[string]bool
}

func newCancelFlags() *cancelFlags {
	return &cancelFlags{ids: make(map[string]bool)}
}

// set requests cancellation of taskID, or of everything when taskID is empty.
func (c *cancelFlags) set(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if taskID == "" {
		c.all = true
		return
	}
	c.ids[taskID] = true
}

func (c *cancelFlags) isSet(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.all || c.ids[taskID]
}

// clear consumes the requests that applied to taskID.
func (c *cancelFlags) clear(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all = false
	delete(c.ids, taskID)
}
