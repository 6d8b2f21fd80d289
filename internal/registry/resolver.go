package registry

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Chain tries each lookup in order and returns the first hit. A source that
// errors is logged and skipped so a whitelist outage still lets REGON answer.
type Chain struct {
	sources []Lookup
	logger  *zap.Logger
}

// NewChain builds a chained lookup.
func NewChain(logger *zap.Logger, sources ...Lookup) *Chain {
	return &Chain{sources: sources, logger: logger}
}

// Find resolves company data from the first source that has it.
func (c *Chain) Find(ctx context.Context, nip string) (*CompanyData, error) {
	if !ValidNIP(nip) {
		return nil, fmt.Errorf("invalid nip %q", nip)
	}

	var lastErr error
	for _, source := range c.sources {
		data, err := source.Find(ctx, nip)
		if err != nil {
			c.logger.Warn("registry source failed",
				zap.String("nip", nip),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		if data != nil {
			return data, nil
		}
	}
	return nil, lastErr
}
