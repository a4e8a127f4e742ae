package staging

import "errors"

var (
	ErrNotFound        = errors.New("staged upload not found")
	ErrNotOwner        = errors.New("you do not own this upload")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrInvalidFileType = errors.New("file type is not allowed")
	ErrEmptyFile       = errors.New("file is empty")
	ErrExpired         = errors.New("staged upload has expired")
)
