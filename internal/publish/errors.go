package publish

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// RecordError is the failure of one record in a sweep.
type RecordError struct {
	RecordID string
	Err      error
}

func (e *RecordError) Error() string {
	return e.RecordID + ": " + e.Err.Error()
}

func (e *RecordError) Unwrap() error { return e.Err }

// BatchError aggregates every record failure of a sweep.
type BatchError struct {
	errs *multierror.Error
}

func (b *BatchError) add(id string, err error) {
	b.errs = multierror.Append(b.errs, &RecordError{RecordID: id, Err: err})
}

func (b *BatchError) errOrNil() error {
	if b.errs.ErrorOrNil() == nil {
		return nil
	}
	return b
}

func (b *BatchError) Error() string {
	b.errs.ErrorFormat = func(errs []error) string {
		lines := make([]string, len(errs))
		for i, err := range errs {
			lines[i] = "  * " + err.Error()
		}
		return fmt.Sprintf("%d post(s) failed:\n%s", len(errs), strings.Join(lines, "\n"))
	}
	return b.errs.Error()
}

// Unwrap exposes the record errors to errors.Is and errors.As.
func (b *BatchError) Unwrap() []error {
	if b.errs == nil {
		return nil
	}
	return b.errs.WrappedErrors()
}

// Failed returns the ids of the failed records in sweep order.
func (b *BatchError) Failed() []string {
	var ids []string
	for _, err := range b.Unwrap() {
		if re, ok := err.(*RecordError); ok {
			ids = append(ids, re.RecordID)
		}
	}
	return ids
}
