package payments

import (
	"github.com/google/uuid"
)

// Status is the provider-reported state of a payment. Values other than the
// known constants are kept verbatim.
type Status string

const (
	StatusPending           Status = "pending"
	StatusWaitingForCapture Status = "waiting_for_capture"
	StatusSucceeded         Status = "succeeded"
	StatusCanceled          Status = "canceled"
)

func (s Status) String() string {
	return string(s)
}

// Known reports whether s is one of the documented provider states.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusWaitingForCapture, StatusSucceeded, StatusCanceled:
		return true
	}
	return false
}

// Final reports whether no further transition is expected.
func (s Status) Final() bool {
	return s == StatusSucceeded || s == StatusCanceled
}

// Change is a local status mutation produced by reconciliation.
type Change struct {
	PaymentID     uuid.UUID
	CollectID     uuid.UUID
	CollectLookup string
	UserID        uuid.UUID
	From          Status
	To            Status
}

// Metadata attached to a provider payment at creation time.
const (
	MetaPaymentID     = "payment_id"
	MetaCollectLookup = "collect_lookup"
	MetaUserID        = "user_id"
	MetaCollectID     = "collect_id"
)

// Metadata identifies the local records behind a provider payment.
type Metadata struct {
	PaymentID     uuid.UUID
	CollectLookup string
	UserID        uuid.UUID
	CollectID     uuid.UUID
}

// Map renders the metadata for the provider.
func (m Metadata) Map() map[string]string {
	return map[string]string{
		MetaPaymentID:     m.PaymentID.String(),
		MetaCollectLookup: m.CollectLookup,
		MetaUserID:        m.UserID.String(),
		MetaCollectID:     m.CollectID.String(),
	}
}

// ParseMetadata reads metadata back from a provider payment.
func ParseMetadata(raw map[string]string) (Metadata, error) {
	var (
		m   Metadata
		err error
	)
	if m.PaymentID, err = parseID(raw, MetaPaymentID); err != nil {
		return Metadata{}, err
	}
	if m.UserID, err = parseID(raw, MetaUserID); err != nil {
		return Metadata{}, err
	}
	if m.CollectID, err = parseID(raw, MetaCollectID); err != nil {
		return Metadata{}, err
	}
	m.CollectLookup = raw[MetaCollectLookup]
	if m.CollectLookup == "" {
		return Metadata{}, &MetadataError{Field: MetaCollectLookup, Message: "is missing"}
	}
	return m, nil
}

func parseID(raw map[string]string, field string) (uuid.UUID, error) {
	value, ok := raw[field]
	if !ok || value == "" {
		return uuid.Nil, &MetadataError{Field: field, Message: "is missing"}
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, &MetadataError{Field: field, Message: "is not a valid id"}
	}
	return id, nil
}

// MetadataError reports malformed provider metadata.
type MetadataError struct {
	Field   string
	Message string
}

func (e *MetadataError) Error() string {
	return "payments: metadata " + e.Field + " " + e.Message
}
