// Package yookassa implements payments.Provider over the YooKassa HTTP API:
// redirect payments with automatic capture, cursor-paginated listing and
// explicit capture. Requests authenticate with the shop id and secret key
// and mutating calls carry an Idempotence-Key.
package yookassa
