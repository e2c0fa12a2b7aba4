package cron

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockcast/pkg/logger"
)

func TestRegistryKeepsWarmJobFirst(t *testing.T) {
	warm, err := NewWarmJob(WarmJobParams{Logger: logger.Nop(), Analytics: &stubAnalytics{}})
	require.NoError(t, err)

	registry := NewRegistry(warm, nil)
	require.NoError(t, registry.Register(&testJob{name: "report-export"}))
	assert.Equal(t, []string{"analytics-cache-warm", "report-export"}, registry.Names())

	jobs := registry.Jobs()
	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry(&testJob{name: warmJobName})
	err := registry.Register(&testJob{name: warmJobName})
	require.Error(t, err)
	assert.Len(t, registry.Jobs(), 1)

	assert.Panics(t, func() {
		NewRegistry(&testJob{name: "a"}, &testJob{name: "a"})
	})
}
