package catalog

import (
	"fmt"
	"slices"

	"github.com/crimson-sun/sectriage/internal/model"
)

// Catalog maps event ids to display names and risk tiers.
// It is read-only after New and safe for concurrent use.
type Catalog struct {
	byID map[int]model.EventDescriptor
}

// New builds a Catalog from descriptors. Each id may appear once, which is
// what keeps the risk tiers mutually exclusive.
func New(descs []model.EventDescriptor) (*Catalog, error) {
	c := &Catalog{byID: make(map[int]model.EventDescriptor, len(descs))}
	for _, d := range descs {
		if d.Name == "" {
			return nil, fmt.Errorf("catalog: event %d has no name", d.ID)
		}
		if prev, ok := c.byID[d.ID]; ok {
			return nil, fmt.Errorf("catalog: event %d listed twice (%q, %q)", d.ID, prev.Name, d.Name)
		}
		c.byID[d.ID] = d
	}
	return c, nil
}

// Default returns the catalog built from DefaultDescriptors.
func Default() *Catalog {
	c, err := New(DefaultDescriptors())
	if err != nil {
		panic(err)
	}
	return c
}

// Describe returns the display name for id, or "Event {id}" if unknown.
func (c *Catalog) Describe(id int) string {
	if d, ok := c.byID[id]; ok {
		return d.Name
	}
	return fmt.Sprintf("Event %d", id)
}

// Lookup returns the descriptor for id.
func (c *Catalog) Lookup(id int) (model.EventDescriptor, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Tier returns the risk tier for id. Unknown ids have TierNone.
func (c *Catalog) Tier(id int) model.Tier {
	return c.byID[id].Tier
}

// Descriptors returns all entries ordered by id.
func (c *Catalog) Descriptors() []model.EventDescriptor {
	out := make([]model.EventDescriptor, 0, len(c.byID))
	for _, d := range c.byID {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b model.EventDescriptor) int { return a.ID - b.ID })
	return out
}

// Len returns the number of known events.
func (c *Catalog) Len() int {
	return len(c.byID)
}
