package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ncecere/spendwatch/internal/catalog"
	"github.com/ncecere/spendwatch/internal/models"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultVersion = "2023-06-01"
	adminKeyPrefix = "sk-ant-admin"
	usagePath      = "/v1/organizations/usage_report/messages"
	maxPages       = 50
)

// Options configures the Anthropic usage client.
type Options struct {
	APIKey     string
	BaseURL    string
	Version    string
	HTTPClient *http.Client
}

type Adapter struct {
	client  *http.Client
	baseURL string
	opts    Options
}

func New(opts Options) (*Adapter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("anthropic: api key required")
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(opts.Version) == "" {
		opts.Version = defaultVersion
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{
		client:  opts.HTTPClient,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		opts:    opts,
	}, nil
}

// HasUsageAPI reports whether the key can read the organization usage report.
// Only admin keys can.
func (a *Adapter) HasUsageAPI() bool {
	return strings.HasPrefix(a.opts.APIKey, adminKeyPrefix)
}

type usageReport struct {
	Data     []usageBucket `json:"data"`
	HasMore  bool          `json:"has_more"`
	NextPage *string       `json:"next_page"`
}

type usageBucket struct {
	StartingAt string        `json:"starting_at"`
	EndingAt   string        `json:"ending_at"`
	Results    []usageResult `json:"results"`
}

type usageResult struct {
	UncachedInputTokens  int64         `json:"uncached_input_tokens"`
	CacheReadInputTokens int64         `json:"cache_read_input_tokens"`
	CacheCreation        cacheCreation `json:"cache_creation"`
	OutputTokens         int64         `json:"output_tokens"`
	Model                *string       `json:"model"`
}

type cacheCreation struct {
	Ephemeral1hInputTokens int64 `json:"ephemeral_1h_input_tokens"`
	Ephemeral5mInputTokens int64 `json:"ephemeral_5m_input_tokens"`
}

func (r usageResult) inputTokens() int64 {
	return r.UncachedInputTokens + r.CacheReadInputTokens +
		r.CacheCreation.Ephemeral1hInputTokens + r.CacheCreation.Ephemeral5mInputTokens
}

// FetchUsage reads daily buckets grouped by model for [start, end]. Keys
// without usage access yield no records.
func (a *Adapter) FetchUsage(ctx context.Context, start, end time.Time) ([]models.DailyUsage, error) {
	if !a.HasUsageAPI() {
		return nil, nil
	}

	days := make(map[time.Time]*dayTotals)
	page := ""
	for i := 0; i < maxPages; i++ {
		report, err := a.fetchPage(ctx, start, end, page)
		if err != nil {
			return nil, err
		}
		for _, bucket := range report.Data {
			if err := addBucket(days, bucket); err != nil {
				return nil, err
			}
		}
		if !report.HasMore || report.NextPage == nil || *report.NextPage == "" {
			break
		}
		page = *report.NextPage
	}
	return flatten(days), nil
}

func (a *Adapter) fetchPage(ctx context.Context, start, end time.Time, page string) (usageReport, error) {
	query := url.Values{}
	query.Set("starting_at", start.UTC().Format(time.RFC3339))
	query.Set("ending_at", end.UTC().Format(time.RFC3339))
	query.Set("bucket_width", "1d")
	query.Add("group_by[]", "model")
	query.Set("limit", "31")
	if page != "" {
		query.Set("page", page)
	}

	endpoint := fmt.Sprintf("%s%s?%s", a.baseURL, usagePath, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return usageReport{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", a.opts.APIKey)
	req.Header.Set("anthropic-version", a.opts.Version)

	resp, err := a.client.Do(req)
	if err != nil {
		return usageReport{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return usageReport{}, decodeAPIError(resp)
	}
	var report usageReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return usageReport{}, fmt.Errorf("decode anthropic usage report: %w", err)
	}
	return report, nil
}

type dayTotals struct {
	tokens    int64
	cost      decimal.Decimal
	modelCost map[string]decimal.Decimal
}

func addBucket(days map[time.Time]*dayTotals, bucket usageBucket) error {
	startedAt, err := time.Parse(time.RFC3339, bucket.StartingAt)
	if err != nil {
		return fmt.Errorf("parse bucket start %q: %w", bucket.StartingAt, err)
	}
	day := startedAt.UTC().Truncate(24 * time.Hour)
	totals, ok := days[day]
	if !ok {
		totals = &dayTotals{modelCost: make(map[string]decimal.Decimal)}
		days[day] = totals
	}
	for _, result := range bucket.Results {
		model := ""
		if result.Model != nil {
			model = *result.Model
		}
		input := result.inputTokens()
		cost := catalog.AnthropicPrices.Cost(model, input, result.OutputTokens)
		totals.tokens += input + result.OutputTokens
		totals.cost = totals.cost.Add(cost)
		totals.modelCost[model] = totals.modelCost[model].Add(cost)
	}
	return nil
}

func flatten(days map[time.Time]*dayTotals) []models.DailyUsage {
	out := make([]models.DailyUsage, 0, len(days))
	for day, totals := range days {
		if totals.tokens == 0 && totals.cost.IsZero() {
			continue
		}
		tokens := totals.tokens
		out = append(out, models.DailyUsage{
			Date:     day,
			Tokens:   &tokens,
			CostUSD:  totals.cost,
			Model:    dominantModel(totals.modelCost),
			Endpoint: "messages",
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

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(body))
	var parsed apiErrorBody
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}
	return &models.UpstreamError{
		Provider:   catalog.ProviderAnthropic,
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}
