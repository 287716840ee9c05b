package domain

import "errors"

var (
	ErrEmptyFrame        = errors.New("captured frame is empty")
	ErrExtractionFailed  = errors.New("frame extraction failed")
	ErrVisionUnavailable = errors.New("vision service unavailable")
	ErrAlertNotDelivered = errors.New("alert not delivered")
)
