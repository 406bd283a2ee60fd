package donations

import (
	"github.com/goliatone/go-donation-cache/store"
)

// CollectView is a collect with its aggregates embedded. SumAmount is nil
// when nothing was donated yet.
type CollectView struct {
	*store.Collect
	SumAmount  *int64 `json:"sum_amount"`
	DonorCount int64  `json:"donor_count"`
}

// OrganizationView is an organization with the total donated to all of its
// collects.
type OrganizationView struct {
	*store.Organization
	SumAmount *int64 `json:"sum_amount"`
}
