package model

import "time"

// BlackoutSlot is an externally configured exclusion window during which no
// reservation may overlap.  A slot either applies to one specific model
// (ModelID set) or to the whole fleet (ModelID nil).  Slots are read-only
// input to availability and checkout; the engine never creates them.
type BlackoutSlot struct {
	ID      uint64    `json:"id"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	ModelID *uint64   `json:"model_id,omitempty"`
	Reason  string    `json:"reason"`
}

// Overlaps reports whether the slot overlaps the given half-open interval.
func (b *BlackoutSlot) Overlaps(start, end time.Time) bool {
	return b.StartAt.Before(end) && b.EndAt.After(start)
}

// AppliesTo reports whether the slot covers the given model.  A slot with
// no model id covers every model.
func (b *BlackoutSlot) AppliesTo(modelID uint64) bool {
	return b.ModelID == nil || *b.ModelID == modelID
}
