package events

import "context"

type Publisher interface {
	PublishSaleRecorded(ctx context.Context, msg SaleRecorded) error
}

type NoopPublisher struct{}

func (NoopPublisher) PublishSaleRecorded(_ context.Context, _ SaleRecorded) error {
	return nil
}
