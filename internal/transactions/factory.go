package transactions

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/stockcast/pkg/config"
	"gorm.io/gorm"
)

// SourceDeps carries the already-connected clients a source may need.
type SourceDeps struct {
	DB       *gorm.DB
	BigQuery bigQueryClient
}

// NewSourceFromConfig builds the Source selected by STOCKCAST_SOURCE_KIND.
// The returned close func releases connections the source opened itself.
func NewSourceFromConfig(cfg config.SourceConfig, deps SourceDeps) (Source, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case config.SourcePostgres, config.SourceSQLite:
		if deps.DB == nil {
			return nil, nil, fmt.Errorf("database connection required for %s source", cfg.Kind)
		}
		return NewRepository(deps.DB), noop, nil
	case config.SourceMySQL:
		src, err := NewMySQLSource(cfg.MySQLDSN, cfg.Table)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	case config.SourceBigQuery:
		if deps.BigQuery == nil {
			return nil, nil, fmt.Errorf("bigquery client required for bigquery source")
		}
		src, err := NewBigQuerySource(deps.BigQuery)
		if err != nil {
			return nil, nil, err
		}
		return src, noop, nil
	case config.SourceCSV:
		src, err := NewCSVSource(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return src, noop, nil
	case config.SourceXLSX:
		src, err := NewXLSXSource(cfg.Path, cfg.Sheet)
		if err != nil {
			return nil, nil, err
		}
		return src, noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported source kind %q", cfg.Kind)
	}
}

// NeedsDB reports whether the configured source reads through the GORM client.
func NeedsDB(cfg config.SourceConfig) bool {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case config.SourcePostgres, config.SourceSQLite:
		return true
	}
	return false
}

// NeedsBigQuery reports whether the configured source reads from BigQuery.
func NeedsBigQuery(cfg config.SourceConfig) bool {
	return strings.EqualFold(strings.TrimSpace(cfg.Kind), config.SourceBigQuery)
}
