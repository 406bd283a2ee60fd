package payments

// Observer receives reconciliation events. Implementations must be safe for
// concurrent use.
type Observer interface {
	ReconcileFinished(report Report, err error)
	StatusChanged(from, to Status)
	PaymentCaptured(status Status)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) ReconcileFinished(Report, error) {}
func (NopObserver) StatusChanged(Status, Status)    {}
func (NopObserver) PaymentCaptured(Status)          {}
