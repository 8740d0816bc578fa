package storage

import (
	"context"
	"errors"

	"liquidityRebalancer/internal/model"
)

// QuoteSink persists solved quotes.
type QuoteSink interface {
	PutQuoteBatch(ctx context.Context, quotes []model.QuoteRecord) error
}

// MultiQuoteSink writes to every sink and joins their errors.
type MultiQuoteSink []QuoteSink

// PutQuoteBatch implements QuoteSink.
func (m MultiQuoteSink) PutQuoteBatch(ctx context.Context, quotes []model.QuoteRecord) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutQuoteBatch(ctx, quotes); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
