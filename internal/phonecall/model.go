package phonecall

import (
	"time"

	"github.com/google/uuid"
)

// PhoneCall is the domain model owned by a single saga instance. It is
// mutated exclusively by the saga's action hooks; transports never write to
// it directly. Fields are filled in incrementally as triggers fire — the
// receiver number only exists once the dial trigger carried it.
type PhoneCall struct {
	ID uuid.UUID

	// CorrelationID points back at the owning saga instance. It is the key
	// used for repository lookups.
	CorrelationID uuid.UUID

	CallerName     string
	CallerNumber   string
	ReceiverName   string
	ReceiverNumber string

	// CallStartedAt is the start of the current connected segment; zero
	// while the call is not connected.
	CallStartedAt time.Time

	// CallDuration accumulates connected time across hold/resume segments.
	CallDuration time.Duration

	IsMissedCall bool

	Muted  bool
	Volume int
}
