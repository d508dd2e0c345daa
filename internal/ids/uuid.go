package ids

import (
	"github.com/google/uuid"

	"github.com/mohamedBounakhla/marketcore/internal/port"
)

// UUIDSupplier issues uuid v4 strings. All ids in the venue (orders,
// reservations, transactions, sagas) come through this one supplier.
type UUIDSupplier struct{}

var _ port.IDSupplier = UUIDSupplier{}

func New() UUIDSupplier { return UUIDSupplier{} }

func (UUIDSupplier) NewID() string { return uuid.NewString() }
