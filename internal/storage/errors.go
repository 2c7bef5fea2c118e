package storage

import "errors"

// ErrIntegrity marks uniqueness and foreign-key rejections from the
// destination store. Backends wrap driver errors with MarkIntegrity so the
// loader can distinguish the recoverable duplicate case from fatal store
// failures via errors.Is(err, ErrIntegrity).
var ErrIntegrity = errors.New("storage: integrity constraint violation")

type integrityError struct {
	err error
}

func (e *integrityError) Error() string {
	return "storage: integrity violation: " + e.err.Error()
}

func (e *integrityError) Is(target error) bool { return target == ErrIntegrity }

func (e *integrityError) Unwrap() error { return e.err }

// MarkIntegrity wraps a driver error so errors.Is(err, ErrIntegrity) holds
// while the original error stays reachable through Unwrap. A nil err returns
// nil.
func MarkIntegrity(err error) error {
	if err == nil {
		return nil
	}
	return &integrityError{err: err}
}
