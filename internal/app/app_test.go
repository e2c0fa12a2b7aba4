package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockcast/internal/analytics"
	"github.com/angelmondragon/stockcast/internal/forecast"
	"github.com/angelmondragon/stockcast/pkg/config"
	"github.com/angelmondragon/stockcast/pkg/logger"
)

func csvConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tx.csv")
	body := "Customer_ID,Product,Purchase_Date,Quantity\n" +
		"C1,Rice,2024-01-05,4\n" +
		"C1,Rice,2024-02-05,6\n" +
		"C2,Oil,2024-03-01,2\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return &config.Config{
		App:      config.AppConfig{Env: "test"},
		Source:   config.SourceConfig{Kind: config.SourceCSV, Path: path},
		Festival: config.FestivalConfig{Preset: "default"},
		Forecast: config.ForecastConfig{MinModelPoints: 4, Workers: 2},
	}
}

func TestBuildFromCSV(t *testing.T) {
	reg := prometheus.NewRegistry()
	rt, err := Build(context.Background(), csvConfig(t), logger.Nop(), Options{Registerer: reg})
	require.NoError(t, err)
	defer func() { require.NoError(t, rt.Close()) }()

	assert.Nil(t, rt.DB)
	assert.Nil(t, rt.Redis)
	assert.False(t, rt.Cache.Enabled())

	summary, err := rt.Analytics.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Rows)

	results, err := rt.Analytics.ForecastStock(context.Background(), analytics.ForecastRequest{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, forecast.OutcomeInsufficientData, r.Outcome)
	}
}

func TestBuildRejectsBadFestivalOverride(t *testing.T) {
	cfg := csvConfig(t)
	cfg.Festival.Windows = "Diwali:13:1-2"
	_, err := Build(context.Background(), cfg, logger.Nop(), Options{})
	require.Error(t, err)
}

func TestBuildRequiresConfig(t *testing.T) {
	_, err := Build(context.Background(), nil, nil, Options{})
	require.Error(t, err)
}
