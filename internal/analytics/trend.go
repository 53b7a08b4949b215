package analytics

import (
	"math"
	"sort"
	"time"
)

// minObservationsForForecast is the low-data guard: below it the
// forecaster does not fit a model at all.
const minObservationsForForecast = 5

type ForecastPoint struct {
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
}

// ForecastCurve is the fitted historical curve plus the future projection,
// with the scalar value at the final projected date as the headline KPI.
type ForecastCurve struct {
	Points []ForecastPoint `json:"points"`
	Final  float64         `json:"final"`
}

// TrendForecaster fits an additive model over the daily weight series:
// piecewise linear trend with detected changepoints plus a weekly Fourier
// seasonality term. Daily and yearly seasonality stay off, the data spans
// months of daily samples. There is no autoregressive term, so the curve
// extrapolates stably past the last observed date.
type TrendForecaster struct {
	changepointRange   float64
	numChangepoints    int
	changepointScale   float64
	fourierOrderWeekly int
}

func NewTrendForecaster() *TrendForecaster {
	return &TrendForecaster{
		changepointRange:   0.8,
		numChangepoints:    25,
		changepointScale:   0.05,
		fourierOrderWeekly: 3,
	}
}

type trendModel struct {
	slope        float64
	offset       float64
	changepoints []float64
	deltas       []float64
	weeklyCoeffs []float64

	tMin, tScale float64
	yMin, yScale float64
}

// Forecast fits the model over (date, weight) and projects it through the
// goal date, with a minimum 1-day horizon when the goal has already
// passed. Fewer than 5 observations degrade to a single-point curve at
// the goal date holding the last known weight.
func (f *TrendForecaster) Forecast(s *Series, goalDate time.Time) *ForecastCurve {
	if len(s.Logged) < minObservationsForForecast {
		lastWeight := s.LastWeight()
		return &ForecastCurve{
			Points: []ForecastPoint{{Date: dateOnly(goalDate), Weight: lastWeight}},
			Final:  lastWeight,
		}
	}

	model := f.fit(s.Days, s.Weight)

	lastDay := s.Days[s.Len()-1]
	horizon := int(dateOnly(goalDate).Sub(lastDay) / day)
	if horizon < 1 {
		horizon = 1
	}

	points := make([]ForecastPoint, 0, s.Len()+horizon)
	for _, d := range s.Days {
		points = append(points, ForecastPoint{Date: d, Weight: f.predict(model, d)})
	}
	for h := 1; h <= horizon; h++ {
		d := lastDay.Add(time.Duration(h) * day)
		points = append(points, ForecastPoint{Date: d, Weight: f.predict(model, d)})
	}

	return &ForecastCurve{
		Points: points,
		Final:  points[len(points)-1].Weight,
	}
}

func (f *TrendForecaster) fit(days []time.Time, weight []float64) *trendModel {
	n := len(days)
	model := &trendModel{}

	model.tMin = float64(days[0].Unix())
	model.tScale = float64(days[n-1].Unix()) - model.tMin
	if model.tScale == 0 {
		model.tScale = 1
	}

	t := make([]float64, n)
	for i := range days {
		t[i] = (float64(days[i].Unix()) - model.tMin) / model.tScale
	}

	model.yMin = weight[0]
	yMax := weight[0]
	for _, w := range weight {
		model.yMin = math.Min(model.yMin, w)
		yMax = math.Max(yMax, w)
	}
	model.yScale = yMax - model.yMin
	if model.yScale == 0 {
		model.yScale = 1
	}

	y := make([]float64, n)
	for i := range weight {
		y[i] = (weight[i] - model.yMin) / model.yScale
	}

	f.fitTrend(model, t, y)

	detrended := make([]float64, n)
	for i := range t {
		detrended[i] = y[i] - f.trendAt(model, t[i])
	}
	model.weeklyCoeffs = fitFourier(days, detrended, 7, f.fourierOrderWeekly)

	return model
}

func (f *TrendForecaster) fitTrend(model *trendModel, t, y []float64) {
	n := len(t)

	var sumT, sumY, sumTY, sumT2 float64
	for i := range t {
		sumT += t[i]
		sumY += y[i]
		sumTY += t[i] * y[i]
		sumT2 += t[i] * t[i]
	}

	nf := float64(n)
	denom := nf*sumT2 - sumT*sumT
	if denom == 0 {
		model.slope = 0
		model.offset = sumY / nf
	} else {
		model.slope = (nf*sumTY - sumT*sumY) / denom
		model.offset = (sumY - model.slope*sumT) / nf
	}

	if f.numChangepoints == 0 || n <= f.numChangepoints {
		return
	}

	for _, idx := range f.detectChangepoints(model, t, y) {
		if idx == 0 || idx == n-1 {
			continue
		}
		localSlope := (y[idx+1] - y[idx-1]) / (t[idx+1] - t[idx-1])
		model.changepoints = append(model.changepoints, t[idx])
		model.deltas = append(model.deltas, (localSlope-model.slope)*f.changepointScale)
	}
}

// detectChangepoints scores each candidate index by the shift in mean
// residual between the windows before and after it, and keeps the
// highest-scoring ones within the changepoint range.
func (f *TrendForecaster) detectChangepoints(model *trendModel, t, y []float64) []int {
	n := len(t)
	rangeEnd := int(float64(n) * f.changepointRange)
	if rangeEnd < 2 {
		return nil
	}

	residuals := make([]float64, n)
	for i := range t {
		residuals[i] = y[i] - (model.slope*t[i] + model.offset)
	}

	windowSize := n / 20
	if windowSize < 3 {
		windowSize = 3
	}

	type candidate struct {
		idx   int
		score float64
	}
	var candidates []candidate
	for i := windowSize; i < rangeEnd-windowSize; i++ {
		var before, after float64
		for j := i - windowSize; j < i; j++ {
			before += residuals[j]
		}
		for j := i; j < i+windowSize; j++ {
			after += residuals[j]
		}
		candidates = append(candidates, candidate{
			idx:   i,
			score: math.Abs(after-before) / float64(windowSize),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > f.numChangepoints {
		candidates = candidates[:f.numChangepoints]
	}

	idxs := make([]int, len(candidates))
	for i, c := range candidates {
		idxs[i] = c.idx
	}
	sort.Ints(idxs)
	return idxs
}

func (f *TrendForecaster) trendAt(model *trendModel, t float64) float64 {
	trend := model.slope*t + model.offset
	for i, cp := range model.changepoints {
		if t > cp {
			trend += model.deltas[i] * (t - cp)
		}
	}
	return trend
}

func (f *TrendForecaster) predict(model *trendModel, d time.Time) float64 {
	tNorm := (float64(d.Unix()) - model.tMin) / model.tScale
	prediction := f.trendAt(model, tNorm) + fourierAt(model.weeklyCoeffs, d, 7)
	return prediction*model.yScale + model.yMin
}

// fitFourier estimates sin/cos coefficients for the given period (in
// days) over the detrended series, one least-squares projection per
// harmonic.
func fitFourier(days []time.Time, detrended []float64, periodDays float64, order int) []float64 {
	coeffs := make([]float64, 2*order)
	periodSec := periodDays * 24 * 3600

	for k := 1; k <= order; k++ {
		var sinSum, cosSum, sinSqSum, cosSqSum float64
		for i, d := range days {
			phase := 2 * math.Pi * float64(k) * float64(d.Unix()) / periodSec
			sinVal := math.Sin(phase)
			cosVal := math.Cos(phase)
			sinSum += detrended[i] * sinVal
			cosSum += detrended[i] * cosVal
			sinSqSum += sinVal * sinVal
			cosSqSum += cosVal * cosVal
		}
		if sinSqSum > 0 {
			coeffs[2*(k-1)] = sinSum / sinSqSum
		}
		if cosSqSum > 0 {
			coeffs[2*(k-1)+1] = cosSum / cosSqSum
		}
	}

	return coeffs
}

func fourierAt(coeffs []float64, d time.Time, periodDays float64) float64 {
	periodSec := periodDays * 24 * 3600
	order := len(coeffs) / 2

	var result float64
	for k := 1; k <= order; k++ {
		phase := 2 * math.Pi * float64(k) * float64(d.Unix()) / periodSec
		result += coeffs[2*(k-1)] * math.Sin(phase)
		result += coeffs[2*(k-1)+1] * math.Cos(phase)
	}
	return result
}
