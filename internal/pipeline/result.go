package pipeline

import (
	pkgerrors "caseflow/pkg/errors"
)

// ResultType classifies the outcome of a pipeline stage for one message
// delivery.
type ResultType int

const (
	Success ResultType = iota
	// PotentiallyRecoverableFailure leaves the message for redelivery,
	// bounded by the ingestion layer's max delivery count.
	PotentiallyRecoverableFailure
	// UnrecoverableFailure routes the message to the dead letter store;
	// redelivery can never succeed.
	UnrecoverableFailure
)

func (t ResultType) String() string {
	switch t {
	case Success:
		return "SUCCESS"
	case PotentiallyRecoverableFailure:
		return "POTENTIALLY_RECOVERABLE_FAILURE"
	case UnrecoverableFailure:
		return "UNRECOVERABLE_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Result is the tagged outcome of a pipeline stage. Cause is nil iff the
// type is Success.
type Result struct {
	Type  ResultType
	Cause error
}

func Succeeded() Result {
	return Result{Type: Success}
}

func Recoverable(cause error) Result {
	return Result{Type: PotentiallyRecoverableFailure, Cause: cause}
}

func Unrecoverable(cause error) Result {
	return Result{Type: UnrecoverableFailure, Cause: cause}
}

// Classify maps a stage error onto a result using the error taxonomy:
// fatal errors (decode, not-found, validation, credentials) never succeed
// on redelivery, everything else is assumed transient.
func Classify(err error) Result {
	if err == nil {
		return Succeeded()
	}
	if pkgerrors.IsUnrecoverable(err) {
		return Unrecoverable(err)
	}
	return Recoverable(err)
}

// Then runs next only when the receiver succeeded; otherwise the first
// failure propagates unchanged and next is never invoked.
func (r Result) Then(next func() Result) Result {
	if r.Type != Success {
		return r
	}
	return next()
}

func (r Result) OK() bool {
	return r.Type == Success
}
