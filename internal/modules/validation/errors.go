package validation

import "errors"

var (
	ErrNotOwner          = errors.New("you do not own this dataset")
	ErrImportNotFinished = errors.New("dataset import has not finished")
)
