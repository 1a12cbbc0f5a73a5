package services

import "fmt"

// PersistenceError marks a failed write and which side of the identity
// mirror it hit. The dual write is not transactional: a provider write can
// succeed and the local write fail, leaving the two sides divergent until the
// next sync. Side lets the caller report which half needs repair.
type PersistenceError struct {
	Side string // "local" or "provider"
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s write failed: %v", e.Side, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NoUnpaidBookingsError is returned by bulk payment when the customer name
// matches no booking with an outstanding balance. Candidates carries other
// customer names that do owe money, for the caller's "did you mean" list.
type NoUnpaidBookingsError struct {
	CustomerName string
	Candidates   []string
}

func (e *NoUnpaidBookingsError) Error() string {
	return fmt.Sprintf("no unpaid bookings for customer %q", e.CustomerName)
}
