// Package store persists organizations, collects, payments and reference data
// with bun and go-repository-bun.
//
// Open selects the postgres or sqlite dialect from the driver name and
// CreateSchema creates the tables. PaymentStore is both the aggregate.Source
// (succeeded-payment sums and donor counts) and the payments.Ledger used by
// the reconciler. Collects are closed, never deleted while payments point at
// them.
package store
