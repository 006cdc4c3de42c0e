package verification

import "errors"

// ErrBadRequest is returned before any storage access when the scanned
// identifier is empty or the request body could not be parsed.
var ErrBadRequest = errors.New("ticket identifier is required")

// ErrTicketNotFound is the store-level sentinel for an absent identifier.
// It is a data outcome, not a hard failure: the service turns it into a
// valid:false result rather than an error.
var ErrTicketNotFound = errors.New("ticket not found")

// TransactionError wraps a storage failure during the atomic
// verify-and-increment step. The whole transaction aborted, so neither the
// ticket mark nor the counter increment was committed. The caller is expected
// to retry; retrying is safe because the scanned flag claim is idempotent.
type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string {
	return "verification transaction failed: " + e.Err.Error()
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
