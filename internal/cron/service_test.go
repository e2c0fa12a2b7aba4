package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/stockcast/internal/aggregate"
	"github.com/angelmondragon/stockcast/internal/analytics"
	"github.com/angelmondragon/stockcast/internal/forecast"
	"github.com/angelmondragon/stockcast/internal/nextpurchase"
	"github.com/angelmondragon/stockcast/pkg/logger"
	"github.com/angelmondragon/stockcast/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type fakeLock struct {
	acquired bool
	err      error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					match = false
				}
			}
			if match {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(success, failure),
		Lock:     &fakeLock{},
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)
	assert.Equal(t, defaultInterval, service.Interval())

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Equal(t, 1, success.runs)
	assert.Equal(t, 1, failure.runs)
	assert.Equal(t, 1.0, counterValue(t, reg, "cron_job_runs_total", map[string]string{"job": "success", "result": "success"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "cron_job_runs_total", map[string]string{"job": "fail", "result": "failure"}))
}

func TestServiceSkipsWhenLockHeld(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := &testJob{name: "warm"}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{acquired: true},
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
	assert.Equal(t, 1.0, counterValue(t, reg, "cron_cycles_skipped_total", nil))
}

func TestServiceLockErrorSurfaces(t *testing.T) {
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Lock: &fakeLock{err: errors.New("redis down")}})
	require.NoError(t, err)
	require.Error(t, service.RunOnce(context.Background()))
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "warm"}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Lock:     &LocalLock{},
		Interval: time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, service.Run(ctx), context.Canceled)
	assert.Equal(t, 1, job.runs)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &LocalLock{}})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.Nop()})
	require.Error(t, err)
}

type memoryStore struct {
	data map[string]string
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestRedisLockOwnership(t *testing.T) {
	store := &memoryStore{data: map[string]string{}}
	a, err := NewRedisLock(store, "sc:lock:cron", 0)
	require.NoError(t, err)
	b, err := NewRedisLock(store, "sc:lock:cron", time.Minute)
	require.NoError(t, err)

	ok, err := a.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Release(context.Background()))
	assert.Contains(t, store.data, "sc:lock:cron")

	require.NoError(t, a.Release(context.Background()))
	assert.NotContains(t, store.data, "sc:lock:cron")

	_, err = NewRedisLock(nil, "k", 0)
	require.Error(t, err)
	_, err = NewRedisLock(store, "", 0)
	require.Error(t, err)
}

type stubAnalytics struct {
	forecastErr error
	scopeLimit  int
	movementTop int
}

func (s *stubAnalytics) MovementSummary(_ context.Context, topN int) (aggregate.Summary, error) {
	s.movementTop = topN
	return aggregate.Summary{}, nil
}

func (s *stubAnalytics) ClassifyMovement(context.Context) ([]aggregate.ProductMovement, error) {
	return []aggregate.ProductMovement{{Product: "Rice"}}, nil
}

func (s *stubAnalytics) EstimateNextPurchase(context.Context) ([]nextpurchase.Prediction, error) {
	return nil, errors.New("source down")
}

func (s *stubAnalytics) ForecastStock(_ context.Context, req analytics.ForecastRequest) ([]forecast.Result, error) {
	s.scopeLimit = req.ScopeLimit
	return []forecast.Result{{Method: forecast.MethodFallbackMean}}, s.forecastErr
}

func TestWarmJobCombinesStepErrors(t *testing.T) {
	stub := &stubAnalytics{forecastErr: errors.New("timeout")}
	job, err := NewWarmJob(WarmJobParams{Logger: logger.Nop(), Analytics: stub, ScopeLimit: 10, MovementTop: 3})
	require.NoError(t, err)
	assert.Equal(t, "analytics-cache-warm", job.Name())

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "next purchase")
	assert.Contains(t, err.Error(), "forecast")
	assert.Equal(t, 10, stub.scopeLimit)
	assert.Equal(t, 3, stub.movementTop)

	_, err = NewWarmJob(WarmJobParams{Logger: logger.Nop()})
	require.Error(t, err)
}
