package relay

import "time"

// Ref types used in event structured reference fields.
const (
	RefEvent     = "event"
	RefLocator   = "locator"
	RefProcessor = "processor"
)

// Ref is one structured reference carried by an event.
type Ref struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Event is the JSON envelope exchanged with the relay. Inbound events carry
// media references in Content and Refs; outbound result events back-reference
// the originating event id.
type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	Refs      []Ref     `json:"refs,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RefValues returns the values of refs matching the given type.
func (e Event) RefValues(refType string) []string {
	var values []string
	for _, ref := range e.Refs {
		if ref.Type == refType {
			values = append(values, ref.Value)
		}
	}
	return values
}
