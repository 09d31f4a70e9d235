// Package exchange converts foreign-currency amounts into the base settlement
// currency using date-effective exchange rates.
package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripsplit/tripsplit-server/internal/models"
	"github.com/tripsplit/tripsplit-server/internal/split"
)

// RateStore persists rate records keyed by (currency code, effective date).
type RateStore interface {
	GetExchangeRate(ctx context.Context, code string, date time.Time) (*models.ExchangeRate, error)
	UpsertExchangeRate(ctx context.Context, rate *models.ExchangeRate) error
}

// Fetcher retrieves a per-unit rate from an external source.
type Fetcher interface {
	Fetch(ctx context.Context, code string, date time.Time) (decimal.Decimal, error)
}

// Converter normalizes amounts into the base currency. A missing rate may
// trigger one bounded synchronous fetch; on fetch failure or timeout the
// conversion fails with ErrExchangeRateNotFound rather than hanging.
type Converter struct {
	store        RateStore
	fetcher      Fetcher // nil disables fetch-on-miss
	fetchTimeout time.Duration
	base         string
	scale        int32
}

// NewConverter creates a Converter for the given base currency.
func NewConverter(store RateStore, fetcher Fetcher, baseCurrency string, fetchTimeout time.Duration) *Converter {
	return &Converter{
		store:        store,
		fetcher:      fetcher,
		fetchTimeout: fetchTimeout,
		base:         baseCurrency,
		scale:        split.ScaleFor(baseCurrency),
	}
}

// BaseCurrency returns the settlement currency code.
func (c *Converter) BaseCurrency() string {
	return c.base
}

// Scale returns the settlement scale of the base currency.
func (c *Converter) Scale() int32 {
	return c.scale
}

// ToBase converts amount into base-currency terms using the rate effective on
// date. Historical expenses must settle at the rate in force when the money
// moved, so the caller passes the expense's own payment date, not the query
// date. Amounts already in the base currency (or with a blank code) pass
// through, rounded to the settlement scale.
func (c *Converter) ToBase(ctx context.Context, amount decimal.Decimal, code string, date time.Time) (decimal.Decimal, error) {
	if code == "" || code == c.base {
		return amount.Round(c.scale), nil
	}

	rate, err := c.Lookup(ctx, code, date)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate).Round(c.scale), nil
}

// Lookup returns the per-unit rate for (code, date), fetching it from the
// external source on a store miss when a fetcher is configured.
func (c *Converter) Lookup(ctx context.Context, code string, date time.Time) (decimal.Decimal, error) {
	rec, err := c.store.GetExchangeRate(ctx, code, date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("looking up rate for %s on %s: %w", code, date.Format("2006-01-02"), err)
	}
	if rec != nil {
		return rec.Rate, nil
	}

	if c.fetcher == nil {
		return decimal.Zero, fmt.Errorf("%w: %s on %s", models.ErrExchangeRateNotFound, code, date.Format("2006-01-02"))
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	rate, err := c.fetcher.Fetch(fetchCtx, code, date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s on %s: %v", models.ErrExchangeRateNotFound, code, date.Format("2006-01-02"), err)
	}

	// Fetched rates are already per unit; persist for later reads.
	if err := c.Ingest(ctx, code, date, rate, 1); err != nil {
		return decimal.Zero, fmt.Errorf("storing fetched rate for %s: %w", code, err)
	}
	return rate, nil
}

// Ingest publishes a rate record. Sources quoting per N units (e.g. KRW per
// 100 JPY) pass perUnits > 1; the division to a per-unit rate happens here,
// exactly once, before storage.
func (c *Converter) Ingest(ctx context.Context, code string, date time.Time, rate decimal.Decimal, perUnits int64) error {
	if rate.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("rate for %s must be positive, got %s", code, rate)
	}
	if perUnits > 1 {
		rate = rate.Div(decimal.NewFromInt(perUnits))
	}

	return c.store.UpsertExchangeRate(ctx, &models.ExchangeRate{
		CurrencyCode:  code,
		DateEffective: date,
		Rate:          rate,
	})
}
