package sectriage

// Event is a catalog entry: a known Windows event id with its display name
// and risk tier ("high", "medium", "low" or "none").
type Event struct {
	ID   int
	Name string
	Tier string
}

// Catalog returns the known events sorted by id. This is read-only;
// consumers can inspect the table but not modify it.
func (t *Triage) Catalog() []Event {
	descs := t.catalog.Descriptors()
	events := make([]Event, len(descs))
	for i, d := range descs {
		events[i] = Event{ID: d.ID, Name: d.Name, Tier: d.Tier.String()}
	}
	return events
}
