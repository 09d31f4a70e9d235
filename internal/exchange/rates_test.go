package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripsplit/tripsplit-server/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeStore struct {
	rates map[string]*models.ExchangeRate
	err   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rates: make(map[string]*models.ExchangeRate)}
}

func (s *fakeStore) key(code string, date time.Time) string {
	return code + "|" + date.Format("2006-01-02")
}

func (s *fakeStore) GetExchangeRate(_ context.Context, code string, date time.Time) (*models.ExchangeRate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rates[s.key(code, date)], nil
}

func (s *fakeStore) UpsertExchangeRate(_ context.Context, rate *models.ExchangeRate) error {
	key := s.key(rate.CurrencyCode, rate.DateEffective)
	if _, ok := s.rates[key]; ok {
		return nil
	}
	s.rates[key] = rate
	return nil
}

type fakeFetcher struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, _ time.Time) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.rate, nil
}

func TestToBasePassesThroughBaseCurrency(t *testing.T) {
	conv := NewConverter(newFakeStore(), nil, "KRW", time.Second)

	got, err := conv.ToBase(context.Background(), dec("12345.6"), "KRW", day("2026-06-01"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("12346")), "base amounts round to settlement scale, got %s", got)

	got, err = conv.ToBase(context.Background(), dec("500"), "", day("2026-06-01"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("500")), "blank code means base currency")
}

func TestToBaseConvertsWithStoredRate(t *testing.T) {
	store := newFakeStore()
	conv := NewConverter(store, nil, "KRW", time.Second)
	require.NoError(t, conv.Ingest(context.Background(), "USD", day("2026-06-01"), dec("1391.5"), 1))

	got, err := conv.ToBase(context.Background(), dec("100"), "USD", day("2026-06-01"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("139150")), "got %s", got)
}

func TestToBaseRoundsHalfUp(t *testing.T) {
	store := newFakeStore()
	conv := NewConverter(store, nil, "KRW", time.Second)
	require.NoError(t, conv.Ingest(context.Background(), "USD", day("2026-06-01"), dec("1391.5"), 1))

	// 0.5 * 1391.5 = 695.75 -> 696 at scale 0
	got, err := conv.ToBase(context.Background(), dec("0.5"), "USD", day("2026-06-01"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("696")), "got %s", got)
}

func TestToBaseMissingRateWithoutFetcher(t *testing.T) {
	conv := NewConverter(newFakeStore(), nil, "KRW", time.Second)

	_, err := conv.ToBase(context.Background(), dec("10"), "USD", day("2026-06-01"))
	assert.ErrorIs(t, err, models.ErrExchangeRateNotFound)
}

func TestToBaseUsesRateForExpenseDateOnly(t *testing.T) {
	store := newFakeStore()
	conv := NewConverter(store, nil, "KRW", time.Second)
	require.NoError(t, conv.Ingest(context.Background(), "USD", day("2026-06-01"), dec("1400"), 1))
	require.NoError(t, conv.Ingest(context.Background(), "USD", day("2026-06-02"), dec("1300"), 1))

	got, err := conv.ToBase(context.Background(), dec("10"), "USD", day("2026-06-01"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("14000")))

	// A rate for a neighboring date never substitutes.
	_, err = conv.ToBase(context.Background(), dec("10"), "USD", day("2026-06-03"))
	assert.ErrorIs(t, err, models.ErrExchangeRateNotFound)
}

func TestIngestNormalizesPerUnitQuote(t *testing.T) {
	store := newFakeStore()
	conv := NewConverter(store, nil, "KRW", time.Second)

	// KRW per 100 JPY, stored per single JPY.
	require.NoError(t, conv.Ingest(context.Background(), "JPY", day("2026-06-01"), dec("964.2"), 100))

	rec, err := store.GetExchangeRate(context.Background(), "JPY", day("2026-06-01"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Rate.Equal(dec("9.642")), "stored %s", rec.Rate)

	got, err := conv.ToBase(context.Background(), dec("1000"), "JPY", day("2026-06-01"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("9642")), "got %s", got)
}

func TestIngestRejectsNonPositiveRate(t *testing.T) {
	conv := NewConverter(newFakeStore(), nil, "KRW", time.Second)

	assert.Error(t, conv.Ingest(context.Background(), "USD", day("2026-06-01"), dec("0"), 1))
	assert.Error(t, conv.Ingest(context.Background(), "USD", day("2026-06-01"), dec("-1"), 1))
}

func TestIngestFirstRecordWins(t *testing.T) {
	store := newFakeStore()
	conv := NewConverter(store, nil, "KRW", time.Second)

	require.NoError(t, conv.Ingest(context.Background(), "USD", day("2026-06-01"), dec("1400"), 1))
	require.NoError(t, conv.Ingest(context.Background(), "USD", day("2026-06-01"), dec("1234"), 1))

	rec, err := store.GetExchangeRate(context.Background(), "USD", day("2026-06-01"))
	require.NoError(t, err)
	assert.True(t, rec.Rate.Equal(dec("1400")), "rate records are immutable once published")
}

func TestLookupFetchesOnMiss(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{rate: dec("1402.7")}
	conv := NewConverter(store, fetcher, "KRW", time.Second)

	got, err := conv.ToBase(context.Background(), dec("10"), "USD", day("2026-06-01"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("14027")))
	assert.Equal(t, 1, fetcher.calls)

	// Second conversion hits the store.
	_, err = conv.ToBase(context.Background(), dec("10"), "USD", day("2026-06-01"))
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
}

func TestLookupFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("upstream down")}
	conv := NewConverter(newFakeStore(), fetcher, "KRW", time.Second)

	_, err := conv.ToBase(context.Background(), dec("10"), "USD", day("2026-06-01"))
	assert.ErrorIs(t, err, models.ErrExchangeRateNotFound)
}

func TestLookupStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection reset")
	conv := NewConverter(store, nil, "KRW", time.Second)

	_, err := conv.ToBase(context.Background(), dec("10"), "USD", day("2026-06-01"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrExchangeRateNotFound)
}
