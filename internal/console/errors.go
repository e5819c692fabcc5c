package console

import "errors"

// Failure classes recovered at the view-controller boundary. None of them
// tears the view down; they surface as transient notices.
var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrNotFound         = errors.New("not found")
	ErrTimeout          = errors.New("request timed out")
	ErrTransportDropped = errors.New("transport dropped")
	ErrNoActiveRoom     = errors.New("no active conversation")
)
