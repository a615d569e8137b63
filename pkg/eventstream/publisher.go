package eventstream

import "context"

// Publisher publishes sale targeting events to an event stream backend.
type Publisher interface {
	PublishSaleTargeting(ctx context.Context, event *SaleTargetingEvent) error
	Close() error
}
