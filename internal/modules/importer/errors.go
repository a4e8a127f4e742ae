package importer

import "errors"

var (
	ErrNotOwner       = errors.New("you do not own this import")
	ErrNotCancellable = errors.New("import is already finished")

	errCancelRequested  = errors.New("cancellation requested")
	errTooManyRowErrors = errors.New("too many rows failed type conversion")
)
