package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// HTTPFetcher pulls rates from an external HTTP source. The source answers
// GET <url>?code=JPY&date=2026-08-31 with {"rate": "9.64", "perUnits": 100}.
type HTTPFetcher struct {
	url    string
	client *http.Client
}

// NewHTTPFetcher creates a fetcher for the given source URL.
func NewHTTPFetcher(sourceURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		url:    sourceURL,
		client: &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, code string, date time.Time) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("code", code)
	q.Set("date", date.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url+"?"+q.Encode(), nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate source returned status %d", resp.StatusCode)
	}

	var body struct {
		Rate     decimal.Decimal `json:"rate"`
		PerUnits int64           `json:"perUnits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decoding rate response: %w", err)
	}
	if body.Rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("rate source returned non-positive rate %s", body.Rate)
	}

	// Normalize per-N-unit quotes to per-unit before anyone stores them.
	if body.PerUnits > 1 {
		return body.Rate.Div(decimal.NewFromInt(body.PerUnits)), nil
	}
	return body.Rate, nil
}

// StartRateRefresh schedules a daily pull of today's rates for the given
// currencies. Failures are logged and retried on the next run.
func StartRateRefresh(conv *Converter, fetcher Fetcher, currencies []string, logger *slog.Logger) *cron.Cron {
	c := cron.New()

	_, err := c.AddFunc("0 0 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		today := time.Now().UTC().Truncate(24 * time.Hour)
		for _, code := range currencies {
			rate, err := fetcher.Fetch(ctx, code, today)
			if err != nil {
				logger.Error("rate refresh failed", "currency", code, "error", err)
				continue
			}
			if err := conv.Ingest(ctx, code, today, rate, 1); err != nil {
				logger.Error("rate refresh store failed", "currency", code, "error", err)
				continue
			}
			logger.Info("rate refreshed", "currency", code, "date", today.Format("2006-01-02"), "rate", rate)
		}
	})
	if err != nil {
		logger.Error("failed to schedule rate refresh", "error", err)
		return c
	}

	c.Start()
	logger.Info("rate refresh scheduled", "currencies", currencies)
	return c
}
