package engine

import "fmt"

// ErrorKind classifies reconciliation failures
type ErrorKind string

const (
	// LookupFailed means required reference data (the workspace
	// member) is missing
	LookupFailed ErrorKind = "lookup_failed"
	// TransactionAborted means a write failed and the whole pass
	// rolled back; no partial state was persisted
	TransactionAborted ErrorKind = "transaction_aborted"
)

// ReconciliationError is fatal to a reconciliation call. The caller
// can rely on account and channel state being exactly as it was
// before the call.
type ReconciliationError struct {
	Kind ErrorKind
	Err  error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed (%s): %v", e.Kind, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

func lookupFailed(err error) *ReconciliationError {
	return &ReconciliationError{Kind: LookupFailed, Err: err}
}

func transactionAborted(err error) *ReconciliationError {
	return &ReconciliationError{Kind: TransactionAborted, Err: err}
}
