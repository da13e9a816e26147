package usage

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/google/uuid"

	"github.com/ncecere/spendwatch/internal/db"
)

var csvHeader = []string{"date", "provider", "model", "endpoint", "requests", "tokens", "cost_usd"}

// ExportCSV writes the same rows Summary returns as CSV.
func (s *Service) ExportCSV(ctx context.Context, user db.User, period string, providerID *uuid.UUID, w io.Writer) error {
	report, err := s.Summary(ctx, user, period, providerID)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, entry := range report.Usage {
		tokens := ""
		if entry.TokensUsed != nil {
			tokens = strconv.FormatInt(*entry.TokensUsed, 10)
		}
		record := []string{
			entry.Date,
			entry.ProviderName,
			entry.Model,
			entry.Endpoint,
			strconv.FormatInt(entry.RequestsCount, 10),
			tokens,
			strconv.FormatFloat(entry.CostUSD, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
