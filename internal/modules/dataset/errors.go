package dataset

import "errors"

var (
	ErrNotOwner       = errors.New("you do not own this resource")
	ErrNotConfirmable = errors.New("upload is not in a confirmable state")
	ErrExpired        = errors.New("staged upload has expired")
	ErrInvalidColumns = errors.New("selected columns do not match the uploaded file")
	ErrAlreadyConfirmed = errors.New("upload was already confirmed")
	ErrImportNotFinished = errors.New("dataset import has not finished")
)
