package openai

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/shopspring/decimal"

	"github.com/ncecere/spendwatch/internal/catalog"
	"github.com/ncecere/spendwatch/internal/models"
)

// Options configure the OpenAI usage client.
type Options struct {
	APIKey       string
	BaseURL      string
	Organization string
	Timeout      time.Duration
	MaxRetries   int
	Extra        []option.RequestOption
}

// Adapter reads usage and validates keys through the official OpenAI SDK.
type Adapter struct {
	client *openai.Client
}

// New creates an OpenAI adapter using the provided API key and optional base URL/organization.
func New(opts Options) (*Adapter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai: api key required")
	}

	requestOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if strings.TrimSpace(opts.BaseURL) != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")))
	}
	if strings.TrimSpace(opts.Organization) != "" {
		requestOpts = append(requestOpts, option.WithOrganization(strings.TrimSpace(opts.Organization)))
	}
	if opts.Timeout > 0 {
		requestOpts = append(requestOpts, option.WithRequestTimeout(opts.Timeout))
	}
	requestOpts = append(requestOpts, opts.Extra...)

	client := openai.NewClient(requestOpts...)
	return &Adapter{client: &client}, nil
}

type usageResponse struct {
	Object string      `json:"object"`
	Data   []usageItem `json:"data"`
}

type usageItem struct {
	AggregationTimestamp  int64  `json:"aggregation_timestamp"`
	NRequests             int64  `json:"n_requests"`
	Operation             string `json:"operation"`
	SnapshotID            string `json:"snapshot_id"`
	NContextTokensTotal   int64  `json:"n_context_tokens_total"`
	NGeneratedTokensTotal int64  `json:"n_generated_tokens_total"`
}

type dayTotals struct {
	requests  int64
	tokens    int64
	cost      decimal.Decimal
	modelCost map[string]decimal.Decimal
	operation string
}

// FetchUsage pulls the usage report for [start, end] and folds it into one
// record per UTC day.
func (a *Adapter) FetchUsage(ctx context.Context, start, end time.Time) ([]models.DailyUsage, error) {
	var resp usageResponse
	err := a.client.Get(ctx, "usage", nil, &resp,
		option.WithQuery("start_time", strconv.FormatInt(start.Unix(), 10)),
		option.WithQuery("end_time", strconv.FormatInt(end.Unix(), 10)),
	)
	if err != nil {
		return nil, mapError(err)
	}
	return aggregate(resp.Data), nil
}

// Validate lists models to confirm the key is accepted.
func (a *Adapter) Validate(ctx context.Context) error {
	if _, err := a.client.Models.List(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func aggregate(items []usageItem) []models.DailyUsage {
	days := make(map[time.Time]*dayTotals)
	for _, item := range items {
		day := time.Unix(item.AggregationTimestamp, 0).UTC().Truncate(24 * time.Hour)
		totals, ok := days[day]
		if !ok {
			totals = &dayTotals{modelCost: make(map[string]decimal.Decimal)}
			days[day] = totals
		}
		cost := catalog.OpenAIPrices.Cost(item.SnapshotID, item.NContextTokensTotal, item.NGeneratedTokensTotal)
		totals.requests += item.NRequests
		totals.tokens += item.NContextTokensTotal + item.NGeneratedTokensTotal
		totals.cost = totals.cost.Add(cost)
		totals.modelCost[item.SnapshotID] = totals.modelCost[item.SnapshotID].Add(cost)
		if totals.operation == "" {
			totals.operation = item.Operation
		}
	}

	out := make([]models.DailyUsage, 0, len(days))
	for day, totals := range days {
		tokens := totals.tokens
		out = append(out, models.DailyUsage{
			Date:     day,
			Requests: totals.requests,
			Tokens:   &tokens,
			CostUSD:  totals.cost,
			Model:    dominantModel(totals.modelCost),
			Endpoint: totals.operation,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func dominantModel(costs map[string]decimal.Decimal) string {
	best := ""
	var bestCost decimal.Decimal
	for model, cost := range costs {
		if best == "" || cost.GreaterThan(bestCost) || (cost.Equal(bestCost) && model < best) {
			best = model
			bestCost = cost
		}
	}
	return best
}

func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &models.UpstreamError{
			Provider:   catalog.ProviderOpenAI,
			StatusCode: apiErr.StatusCode,
			Message:    strings.TrimSpace(apiErr.Message),
		}
	}
	return err
}
