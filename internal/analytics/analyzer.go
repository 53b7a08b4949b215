package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yuta66jp/bodymake-dashboard/internal/logstore"
	"github.com/yuta66jp/bodymake-dashboard/internal/telemetry/metrics"
	"github.com/yuta66jp/bodymake-dashboard/internal/telemetry/tracing"
)

//go:generate mockgen -source=$GOFILE -destination=analyzer_mocks_test.go -package=analytics

// ErrNoData marks an empty daily log; the pipeline short-circuits and the
// caller decides how to render that.
var ErrNoData = errors.New("no logged observations")

type dashboardRepo interface {
	ListObservations(ctx context.Context, from, to *time.Time) ([]logstore.Observation, error)
	ListRecentObservations(ctx context.Context, n int) ([]logstore.Observation, error)
	GetSettings(ctx context.Context) (*logstore.Settings, error)
}

// fallbackExpenditure seeds the simulator when no expenditure estimate
// can be derived yet (too few logged days).
const fallbackExpenditure = 2400

// KPIReport is the headline summary shown at the top of the dashboard.
type KPIReport struct {
	CurrentWeight  float64    `json:"currentWeight"`
	DaysLeft       int        `json:"daysLeft"`
	Forecast       float64    `json:"forecast"`
	Gap            float64    `json:"gap"`
	OnTrack        bool       `json:"onTrack"`
	Action         string     `json:"action"`
	AdjustmentKcal float64    `json:"adjustmentKcal"`
	TDEE           float64    `json:"tdee"`
	GoalHitDate    *time.Time `json:"goalHitDate,omitempty"`
}

// kpi action labels
const (
	ActionKeep       = "Keep"
	ActionCutNeeded  = "Cut Needed"
	ActionPushHarder = "Push Harder"
	ActionSlowDown   = "Slow Down"
)

// WeeklyStat aggregates the normalized series over one ISO week.
type WeeklyStat struct {
	Year          int      `json:"year"`
	Week          int      `json:"week"`
	AvgWeight     float64  `json:"avgWeight"`
	WeightChange  *float64 `json:"weightChange,omitempty"`
	RateOfLossPct *float64 `json:"rateOfLossPct,omitempty"`
	Pace          string   `json:"pace,omitempty"`
	AvgIntake     *float64 `json:"avgIntake,omitempty"`
	ProteinRatio  *float64 `json:"proteinRatio,omitempty"`
}

// weekly rate-of-loss pace labels; the ideal band is -1.5..-0.5 %/week
const (
	PaceIdeal   = "Ideal"
	PaceTooFast = "Too Fast"
	PaceSlow    = "Slow"
)

// MacroDay is one day's protein/fat/carbs kcal composition in percent.
type MacroDay struct {
	Date       time.Time `json:"date"`
	ProteinPct float64   `json:"proteinPct"`
	FatPct     float64   `json:"fatPct"`
	CarbsPct   float64   `json:"carbsPct"`
}

// Dashboard is the result of one full pipeline run.
type Dashboard struct {
	Settings         logstore.Settings
	Series           *Series
	Expenditure      *ExpenditureEstimate
	Forecast         *ForecastCurve
	LinearProjection float64
	Simulation       SimulationTrajectory
	Factors          []FactorImportance
	KPIs             KPIReport
	WeeklyStats      []WeeklyStat
	Macros           []MacroDay
	PlannedIntake    float64
}

type NewAnalyzerParams struct {
	Repo                   dashboardRepo
	Cache                  *ForecastCache
	Metrics                *metrics.Manager
	WeightWindow           int     // trailing-mean window for weight/calories, default 7
	TDEEWindow             int     // expenditure smoothing window, default 14
	EnergyDensityEstimator float64 // default 7200
	EnergyDensitySimulator float64 // default 6800
	AdaptationFactor       float64 // default 30, 0 means "use default"
}

// Analyzer runs the full pipeline: normalize the log, derive expenditure,
// forecast, project, simulate and rank, then assemble the dashboard.
// Synchronous, no shared mutable state; every run works on its own
// fetched series.
type Analyzer struct {
	repo       dashboardRepo
	cache      *ForecastCache
	metrics    *metrics.Manager
	normalizer *Normalizer
	estimator  *ExpenditureEstimator
	forecaster *TrendForecaster
	projector  *LinearProjector
	simulator  *AdaptiveSimulator
	ranker     *FactorRanker

	estimatorEnergyDensity float64
}

func NewAnalyzer(params NewAnalyzerParams) *Analyzer {
	estimatorDensity := params.EnergyDensityEstimator
	if estimatorDensity <= 0 {
		estimatorDensity = DefaultEnergyDensityEstimator
	}
	adaptationFactor := params.AdaptationFactor
	if adaptationFactor == 0 {
		adaptationFactor = DefaultAdaptationFactor
	}
	return &Analyzer{
		repo:       params.Repo,
		cache:      params.Cache,
		metrics:    params.Metrics,
		normalizer: NewNormalizer(params.WeightWindow),
		estimator:  NewExpenditureEstimator(estimatorDensity, params.TDEEWindow),
		forecaster: NewTrendForecaster(),
		projector:  NewLinearProjector(),
		simulator:  NewAdaptiveSimulator(params.EnergyDensitySimulator, adaptationFactor),
		ranker:     NewFactorRanker(),

		estimatorEnergyDensity: estimatorDensity,
	}
}

// Dashboard fetches the log once and runs the whole pipeline. Nil
// plannedIntake defaults to the latest calorie moving average; nil
// plannedBurn defaults to the latest smoothed expenditure estimate
// (2400 kcal when no estimate exists yet).
func (a *Analyzer) Dashboard(ctx context.Context, plannedIntake, plannedBurn *float64) (_ *Dashboard, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analytics.dashboard")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	defer func(begin time.Time) {
		a.metrics.HistPipelineDuration.Observe(time.Since(begin).Seconds())
	}(time.Now())

	observations, err := a.repo.ListObservations(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch observations: %w", err)
	}

	settings, err := a.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch settings: %w", err)
	}

	series := a.normalizer.Normalize(observations, settings.TargetDate)
	if series.Empty() {
		return nil, ErrNoData
	}

	expenditure := a.estimator.Estimate(series)
	forecast := a.forecast(series, settings.TargetDate)
	linearProjection := a.projector.Project(series, settings.TargetDate)
	factors := a.ranker.Rank(series)

	tdee := expenditure.Latest()
	if math.IsNaN(tdee) {
		tdee = fallbackExpenditure
	}

	burn := tdee
	if plannedBurn != nil {
		burn = *plannedBurn
	}
	intake := latestDefined(series.CalorieMA)
	if math.IsNaN(intake) {
		intake = fallbackExpenditure
	}
	if plannedIntake != nil {
		intake = *plannedIntake
	}

	lastObserved := series.Days[series.Len()-1]
	simulation := a.simulator.Simulate(series.LastWeight(), burn, intake, lastObserved, settings.TargetDate)

	return &Dashboard{
		Settings:         *settings,
		Series:           series,
		Expenditure:      expenditure,
		Forecast:         forecast,
		LinearProjection: linearProjection,
		Simulation:       simulation,
		Factors:          factors,
		KPIs:             a.deriveKPIs(series, forecast, *settings, tdee),
		WeeklyStats:      deriveWeeklyStats(series),
		Macros:           deriveMacros(series, 60),
		PlannedIntake:    intake,
	}, nil
}

// Recent returns the last n as-logged observations, never the filled
// series.
func (a *Analyzer) Recent(ctx context.Context, n int) ([]logstore.Observation, error) {
	return a.repo.ListRecentObservations(ctx, n)
}

func (a *Analyzer) forecast(series *Series, goalDate time.Time) *ForecastCurve {
	key := forecastCacheKey(series, goalDate, a.forecaster)
	if curve, ok := a.cache.Get(key); ok {
		return curve
	}

	begin := time.Now()
	curve := a.forecaster.Forecast(series, goalDate)
	a.metrics.HistForecastFitDuration.Observe(time.Since(begin).Seconds())

	a.cache.Set(key, curve)
	return curve
}

func (a *Analyzer) deriveKPIs(series *Series, forecast *ForecastCurve, settings logstore.Settings, tdee float64) KPIReport {
	lastObserved := series.Days[series.Len()-1]
	daysLeft := int(dateOnly(settings.TargetDate).Sub(lastObserved) / day)
	if daysLeft < 1 {
		daysLeft = 1
	}

	gap := forecast.Final - settings.TargetWeightKg

	onTrack := true
	action := ActionKeep
	switch settings.Phase {
	case "Bulk":
		if gap < -0.2 {
			onTrack = false
			action = ActionPushHarder
		} else if gap > 0.5 {
			onTrack = false
			action = ActionSlowDown
		}
	default: // Cut
		if gap > 0.1 {
			onTrack = false
			action = ActionCutNeeded
		}
	}

	adjustment := 0.0
	if !onTrack {
		adjustment = math.Abs(gap) * a.estimatorEnergyDensity / float64(daysLeft)
	}

	return KPIReport{
		CurrentWeight:  series.LastWeight(),
		DaysLeft:       daysLeft,
		Forecast:       forecast.Final,
		Gap:            gap,
		OnTrack:        onTrack,
		Action:         action,
		AdjustmentKcal: adjustment,
		TDEE:           tdee,
		GoalHitDate:    goalHitDate(series, forecast, settings, lastObserved),
	}
}

// goalHitDate finds the first future forecast point at or under the
// target weight; when the curve never reaches it, falls back to a
// straight-line estimate from the recent trend.
func goalHitDate(series *Series, forecast *ForecastCurve, settings logstore.Settings, lastObserved time.Time) *time.Time {
	for _, p := range forecast.Points {
		if p.Date.After(lastObserved) && p.Weight <= settings.TargetWeightKg {
			hitDate := p.Date
			return &hitDate
		}
	}

	// straight-line fallback from the last two weight moving averages
	n := series.Len()
	if n < 2 {
		return nil
	}
	slope := series.WeightMA[n-1] - series.WeightMA[n-2]
	remaining := settings.TargetWeightKg - series.LastWeight()
	if math.IsNaN(slope) || slope >= 0 || remaining >= 0 {
		return nil
	}
	days := int(math.Ceil(remaining / slope))
	hitDate := lastObserved.Add(time.Duration(days) * day)
	return &hitDate
}

func deriveWeeklyStats(series *Series) []WeeklyStat {
	type weekAgg struct {
		weightSum   float64
		weightCount int
		intakeSum   float64
		intakeCount int
		proteinSum  float64
	}

	var order []WeeklyStat
	aggs := make(map[[2]int]*weekAgg)
	for i, d := range series.Days {
		year, week := d.ISOWeek()
		key := [2]int{year, week}
		agg, ok := aggs[key]
		if !ok {
			agg = &weekAgg{}
			aggs[key] = agg
			order = append(order, WeeklyStat{Year: year, Week: week})
		}
		if !math.IsNaN(series.Weight[i]) {
			agg.weightSum += series.Weight[i]
			agg.weightCount++
		}
		if !math.IsNaN(series.Calories[i]) {
			agg.intakeSum += series.Calories[i]
			agg.intakeCount++
			if !math.IsNaN(series.ProteinG[i]) {
				agg.proteinSum += series.ProteinG[i]
			}
		}
	}

	var prevAvg float64
	for i := range order {
		agg := aggs[[2]int{order[i].Year, order[i].Week}]
		if agg.weightCount == 0 {
			continue
		}
		avgWeight := agg.weightSum / float64(agg.weightCount)
		order[i].AvgWeight = avgWeight

		if i > 0 && prevAvg > 0 {
			change := avgWeight - prevAvg
			rate := change / prevAvg * 100
			order[i].WeightChange = &change
			order[i].RateOfLossPct = &rate
			switch {
			case rate < -1.5:
				order[i].Pace = PaceTooFast
			case rate <= -0.5:
				order[i].Pace = PaceIdeal
			default:
				order[i].Pace = PaceSlow
			}
		}
		prevAvg = avgWeight

		if agg.intakeCount > 0 {
			avgIntake := agg.intakeSum / float64(agg.intakeCount)
			order[i].AvgIntake = &avgIntake
			if avgIntake > 0 && agg.proteinSum > 0 {
				ratio := agg.proteinSum / float64(agg.intakeCount) * 4 / avgIntake
				order[i].ProteinRatio = &ratio
			}
		}
	}

	return order
}

// deriveMacros computes the per-day protein/fat/carbs kcal split over the
// last windowDays days, skipping days with incomplete macro logging.
func deriveMacros(series *Series, windowDays int) []MacroDay {
	start := series.Len() - windowDays
	if start < 0 {
		start = 0
	}

	var macros []MacroDay
	for i := start; i < series.Len(); i++ {
		p, f, c := series.ProteinG[i], series.FatG[i], series.CarbsG[i]
		if math.IsNaN(p) || math.IsNaN(f) || math.IsNaN(c) {
			continue
		}
		total := p*4 + f*9 + c*4
		if total == 0 {
			continue
		}
		macros = append(macros, MacroDay{
			Date:       series.Days[i],
			ProteinPct: p * 4 / total * 100,
			FatPct:     f * 9 / total * 100,
			CarbsPct:   c * 4 / total * 100,
		})
	}
	return macros
}

func latestDefined(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			return values[i]
		}
	}
	return math.NaN()
}
