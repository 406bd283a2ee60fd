// Package donations is the service layer of the platform. Its services read
// through the result and aggregate caches and wrap every write so the
// affected cache entries are dropped once the write committed.
//
// Routing, authentication and image handling live outside this package;
// callers pass the acting user and request parameters in explicitly.
package donations
