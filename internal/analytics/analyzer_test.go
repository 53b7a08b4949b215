package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/yuta66jp/bodymake-dashboard/internal/logstore"
	"github.com/yuta66jp/bodymake-dashboard/internal/telemetry/metrics"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalyzer(t *testing.T, repo dashboardRepo) (*Analyzer, *metrics.Manager) {
	t.Helper()
	metricsManager := metrics.NewTestManager()
	analyzer := NewAnalyzer(NewAnalyzerParams{
		Repo:    repo,
		Cache:   NewForecastCache(1<<20, metricsManager),
		Metrics: metricsManager,
	})
	return analyzer, metricsManager
}

func seedDecliningLog(t *testing.T, repo logstore.Api, numDays int) {
	t.Helper()
	ctx := context.Background()
	for _, o := range decliningSeries(numDays, 80, 0.2, 2000) {
		_, err := repo.UpsertObservation(ctx, o)
		require.NoError(t, err)
	}
}

func TestAnalyzer_Dashboard(t *testing.T) {
	repo := logstore.NewMockRepo()
	seedDecliningLog(t, repo, 30)
	analyzer, _ := newTestAnalyzer(t, repo)

	dashboard, err := analyzer.Dashboard(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 30, dashboard.Series.Len())
	assert.InDelta(t, 80-0.2*29, dashboard.KPIs.CurrentWeight, 1e-9)

	// steady 0.2 kg/day loss at 2000 kcal reverse-engineers to 3440
	assert.InDelta(t, 3440, dashboard.KPIs.TDEE, 1e-6)

	// defaults: intake from the calorie moving average
	assert.InDelta(t, 2000, dashboard.PlannedIntake, 1e-9)

	require.NotNil(t, dashboard.Forecast)
	assert.NotEmpty(t, dashboard.Forecast.Points)
	assert.NotEmpty(t, dashboard.Simulation)
	assert.NotEmpty(t, dashboard.WeeklyStats)
	assert.NotZero(t, dashboard.LinearProjection)

	// losing fast on a Cut: forecast lands under target, no alert
	assert.True(t, dashboard.KPIs.OnTrack)
	assert.Equal(t, ActionKeep, dashboard.KPIs.Action)
	assert.Equal(t, 0.0, dashboard.KPIs.AdjustmentKcal)
}

func TestAnalyzer_Dashboard_forecastCached(t *testing.T) {
	repo := logstore.NewMockRepo()
	seedDecliningLog(t, repo, 30)
	analyzer, metricsManager := newTestAnalyzer(t, repo)

	_, err := analyzer.Dashboard(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(0), testutil.ToFloat64(metricsManager.CounterForecastCacheHit))

	// unchanged log: the second run reuses the fitted curve
	_, err = analyzer.Dashboard(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterForecastCacheHit))
}

func TestAnalyzer_Dashboard_plannedOverrides(t *testing.T) {
	repo := logstore.NewMockRepo()
	seedDecliningLog(t, repo, 30)
	analyzer, _ := newTestAnalyzer(t, repo)

	intake := 1500.0
	burn := 2800.0
	dashboard, err := analyzer.Dashboard(context.Background(), &intake, &burn)
	require.NoError(t, err)

	assert.Equal(t, 1500.0, dashboard.PlannedIntake)
	require.NotEmpty(t, dashboard.Simulation)

	// first simulated day moves by (intake - burn) / energy density
	expectedFirst := dashboard.KPIs.CurrentWeight + (1500-2800)/float64(DefaultEnergyDensitySimulator)
	assert.InDelta(t, expectedFirst, dashboard.Simulation[0].Weight, 1e-9)
}

func TestAnalyzer_Dashboard_noData(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, logstore.NewMockRepo())

	_, err := analyzer.Dashboard(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrNoData)
}

func TestAnalyzer_Dashboard_storeUnreachable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repoMock := NewMockdashboardRepo(ctrl)
	repoMock.EXPECT().
		ListObservations(gomock.Any(), gomock.Nil(), gomock.Nil()).
		Return(nil, errors.New("connection refused"))

	analyzer, _ := newTestAnalyzer(t, repoMock)

	_, err := analyzer.Dashboard(context.Background(), nil, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
	assert.Contains(t, err.Error(), "fetch observations")
}
