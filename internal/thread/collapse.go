package thread

import (
	"slices"
	"sync"
)

// Stats summarises a collapse state. Visible is Total minus Collapsed.
type Stats struct {
	Total     int `json:"total"`
	Collapsed int `json:"collapsed"`
	Visible   int `json:"visible"`
}

// Collapse tracks collapsed posts for one thread view. Ids that are not in the
// tree are ignored, so Collapsed never exceeds Total.
type Collapse struct {
	mu          sync.RWMutex
	ids         []uint
	descendants map[uint]int
	collapsed   map[uint]struct{}
}

// NewCollapse binds a collapse state to a tree, starting with the given ids collapsed.
func NewCollapse(roots []*Node, collapsed ...uint) *Collapse {
	c := &Collapse{
		descendants: make(map[uint]int),
		collapsed:   make(map[uint]struct{}),
	}
	c.bind(roots)
	for _, id := range collapsed {
		if _, ok := c.descendants[id]; ok {
			c.collapsed[id] = struct{}{}
		}
	}
	return c
}

func (c *Collapse) bind(roots []*Node) {
	// post-order so each node's count is ready before its parent's
	var count func(n *Node) int
	count = func(n *Node) int {
		total := 0
		for _, r := range n.Replies {
			total += 1 + count(r)
		}
		c.descendants[n.Comment.ID] = total
		return total
	}
	for _, r := range roots {
		count(r)
	}
	c.ids = IDs(roots)
}

// Toggle flips id and reports whether it is now collapsed.
func (c *Collapse) Toggle(id uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.descendants[id]; !ok {
		return false
	}
	if _, ok := c.collapsed[id]; ok {
		delete(c.collapsed, id)
		return false
	}
	c.collapsed[id] = struct{}{}
	return true
}

func (c *Collapse) ExpandAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.collapsed)
}

func (c *Collapse) CollapseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.ids {
		c.collapsed[id] = struct{}{}
	}
}

func (c *Collapse) IsCollapsed(id uint) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.collapsed[id]
	return ok
}

func (c *Collapse) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := len(c.ids)
	return Stats{Total: total, Collapsed: len(c.collapsed), Visible: total - len(c.collapsed)}
}

// HiddenReplies is the number of replies hidden beneath id, or 0 when id is expanded.
func (c *Collapse) HiddenReplies(id uint) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.collapsed[id]; !ok {
		return 0
	}
	return c.descendants[id]
}

// CollapsedIDs returns the collapsed ids in ascending order.
func (c *Collapse) CollapsedIDs() []uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]uint, 0, len(c.collapsed))
	for id := range c.collapsed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
