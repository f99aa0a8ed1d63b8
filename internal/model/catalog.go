package model

// Tier is a coarse risk bucket for an event id.
type Tier int

const (
	TierNone Tier = iota
	TierLow
	TierMedium
	TierHigh
)

// String returns the lowercase tier name used in config, metrics and output.
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	default:
		return "none"
	}
}

// EventDescriptor is a catalog entry.
type EventDescriptor struct {
	ID   int
	Name string
	Tier Tier
}
