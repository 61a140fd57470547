// Package results carries the outcome of a service operation: either a success
// payload or a domain failure. Infrastructure errors travel separately as the
// second return value of the operation.
package results

// OperationResult holds exactly one of Success or Failure.
type OperationResult[S any, F any] struct {
	Success *S
	Failure *F
}

// SuccessResult builds a successful result.
func SuccessResult[S any, F any](v S) OperationResult[S, F] {
	return OperationResult[S, F]{Success: &v}
}

// FailureResult builds a failed result.
func FailureResult[S any, F any](f F) OperationResult[S, F] {
	return OperationResult[S, F]{Failure: &f}
}

// IsSuccess reports whether the result carries a success payload.
func (r OperationResult[S, F]) IsSuccess() bool {
	return r.Success != nil
}

// IsFailure reports whether the result carries a failure payload.
func (r OperationResult[S, F]) IsFailure() bool {
	return r.Failure != nil
}

// Unwrap returns the success value, or the failure as an error.
func Unwrap[S any](r OperationResult[S, error]) (S, error) {
	var zero S
	if r.IsFailure() {
		return zero, *r.Failure
	}
	if r.Success == nil {
		return zero, nil
	}
	return *r.Success, nil
}
