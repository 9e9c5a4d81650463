package catalog

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// ULIDGenerator produces ULIDs: a timestamp component plus random bits,
// so ids sort roughly by creation time.
type ULIDGenerator struct{}

func (ULIDGenerator) New() string { return ulid.Make().String() }
