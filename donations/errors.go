package donations

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	// ErrCollectClosed is returned when paying into an inactive collect.
	ErrCollectClosed = errors.New("donations: collect is closed")

	// ErrNotOwner is returned when a user changes a collect they did not
	// create.
	ErrNotOwner = errors.New("donations: not the collect owner")
)

// Field validation errors.
var (
	ErrInvalidVideoURL     = validation.NewError("validation_invalid_video_url", "must be a YouTube link with a v parameter")
	ErrCloseDateNotFuture  = validation.NewError("validation_close_date_not_future", "must be after today")
	ErrUnknownOrganization = validation.NewError("validation_unknown_organization", "organization does not exist")
	ErrUnknownOccasion     = validation.NewError("validation_unknown_occasion", "occasion does not exist")
	ErrUnknownReference    = validation.NewError("validation_unknown_reference", "contains an unknown slug")
)
