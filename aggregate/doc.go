// Package aggregate caches values derived from succeeded payments: the sum
// and distinct donor count of a collect and the sum of an organization.
//
// Entries live under the aggregate tag as aggregate_{kind}_{id}_{metric} and
// are invalidated one by one when a payment of the owning entity changes
// status:
//
//	agg := aggregate.New(svc, paymentStore)
//	sum, err := agg.GetOrCompute(ctx, aggregate.KindCollect, collectID, aggregate.MetricSumAmount)
//	if sum.Valid {
//		fmt.Println(sum.N)
//	}
//
//	agg.Invalidate(ctx, aggregate.CollectRefs(collectID)...)
//
// A collect without succeeded payments has no sum. That result is cached as
// an Entry with a nil Value, so it is served from the cache like any other
// value instead of being mistaken for a miss.
package aggregate
