// Package payments keeps local payment statuses in step with the payment
// provider.
//
// The Reconciler lists recent provider payments page by page, captures the
// ones waiting for capture, commits each page's status changes in a single
// transaction through the Ledger and finally invalidates, in one batch, the
// cache entries those changes made stale. The Scheduler runs it on a cron
// schedule behind a Locker lease so only one replica reconciles at a time;
// ExpiredCloser is the daily job that closes collects past their close date.
//
// Concrete providers live in subpackages (see payments/yookassa).
package payments
