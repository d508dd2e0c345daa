package port

// IDSupplier produces globally-unique string identifiers. The core never
// generates ids itself; it requests one per order, reservation, transaction
// and saga.
type IDSupplier interface {
	NewID() string
}
