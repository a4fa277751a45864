package treasury

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refit-labs/staking-engine/pkg/logger"
)

// Source reports the authoritative external treasury balance composition.
type Source interface {
	FetchBalances(ctx context.Context) (liquid, validator decimal.Decimal, err error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (decimal.Decimal, decimal.Decimal, error)

func (f SourceFunc) FetchBalances(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	return f(ctx)
}

// HTTPSource fetches treasury balances from a JSON endpoint.
type HTTPSource struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

// NewHTTPSource constructs a source using the provided endpoint.
func NewHTTPSource(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPSource, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("treasury endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse treasury endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("treasury-http-source")
	}
	return &HTTPSource{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		log:      log,
	}, nil
}

func (s *HTTPSource) FetchBalances(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint.String(), nil)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("build treasury request: %w", err)
	}
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("treasury request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, decimal.Zero, fmt.Errorf("treasury status %d", resp.StatusCode)
	}

	var payload struct {
		LiquidBalance    decimal.Decimal `json:"liquid_balance"`
		ValidatorBalance decimal.Decimal `json:"validator_balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("decode treasury response: %w", err)
	}
	return payload.LiquidBalance, payload.ValidatorBalance, nil
}
