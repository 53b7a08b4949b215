package analytics

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/yuta66jp/bodymake-dashboard/internal/logstore"
	"github.com/yuta66jp/bodymake-dashboard/internal/telemetry/tracing"
	"github.com/yuta66jp/bodymake-dashboard/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	analyzer *Analyzer
}

func NewHandler(analyzer *Analyzer) *Handler {
	return &Handler{
		analyzer: analyzer,
	}
}

// seriesRow is the JSON view of one normalized-series day; undefined
// values marshal as null, never NaN.
type seriesRow struct {
	Date         string   `json:"date"`
	Weight       *float64 `json:"weight"`
	RawWeight    *float64 `json:"rawWeight"`
	Calories     *float64 `json:"calories"`
	WeightMA     *float64 `json:"weightMa"`
	CalorieMA    *float64 `json:"calorieMa"`
	WeightDelta  *float64 `json:"weightDelta"`
	SMA7         *float64 `json:"sma7"`
	DaysOut      int      `json:"daysOut"`
	TDEERaw      *float64 `json:"tdeeRaw"`
	TDEESmoothed *float64 `json:"tdeeSmoothed"`
}

type dashboardResponse struct {
	Settings         logstore.Settings  `json:"settings"`
	Rows             []seriesRow        `json:"rows"`
	Forecast         *ForecastCurve     `json:"forecast"`
	LinearProjection float64            `json:"linearProjection"`
	Simulation       []SimulationPoint  `json:"simulation"`
	Factors          []FactorImportance `json:"factors,omitempty"`
	KPIs             KPIReport          `json:"kpis"`
	WeeklyStats      []WeeklyStat       `json:"weeklyStats"`
	Macros           []MacroDay         `json:"macros"`
	PlannedIntake    float64            `json:"plannedIntake"`
}

// HandleDashboard runs the full pipeline. Optional query params `intake`
// and `burn` override the simulator's planned intake and expenditure.
func (handler *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.analytics.dashboard")
	defer span.End()

	var plannedIntake, plannedBurn *float64
	if intakeStr := r.URL.Query().Get("intake"); intakeStr != "" {
		intake, err := strconv.ParseFloat(intakeStr, 64)
		if err != nil || intake < 0 {
			http.Error(w, "error, invalid intake", http.StatusBadRequest)
			return
		}
		plannedIntake = &intake
	}
	if burnStr := r.URL.Query().Get("burn"); burnStr != "" {
		burn, err := strconv.ParseFloat(burnStr, 64)
		if err != nil || burn < 0 {
			http.Error(w, "error, invalid burn", http.StatusBadRequest)
			return
		}
		plannedBurn = &burn
	}

	dashboard, err := handler.analyzer.Dashboard(ctx, plannedIntake, plannedBurn)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			http.Error(w, "no data", http.StatusNotFound)
			return
		}
		log.Errorf("dashboard pipeline error: %s", err)
		http.Error(w, "failed to build dashboard", http.StatusInternalServerError)
		return
	}

	response := dashboardResponse{
		Settings:         dashboard.Settings,
		Rows:             seriesRows(dashboard.Series, dashboard.Expenditure),
		Forecast:         dashboard.Forecast,
		LinearProjection: dashboard.LinearProjection,
		Simulation:       dashboard.Simulation,
		Factors:          dashboard.Factors,
		KPIs:             dashboard.KPIs,
		WeeklyStats:      dashboard.WeeklyStats,
		Macros:           dashboard.Macros,
		PlannedIntake:    dashboard.PlannedIntake,
	}
	if response.Simulation == nil {
		response.Simulation = []SimulationPoint{}
	}
	if response.WeeklyStats == nil {
		response.WeeklyStats = []WeeklyStat{}
	}
	if response.Macros == nil {
		response.Macros = []MacroDay{}
	}

	responseJson, err := json.Marshal(response)
	if err != nil {
		log.Errorf("marshal dashboard error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(responseJson))
}

// HandleRecent returns the last n as-logged entries (no forward-filled
// gap days).
func (handler *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.analytics.recent")
	defer span.End()

	vars := mux.Vars(r)
	n, err := strconv.Atoi(vars["n"])
	if err != nil || n <= 0 {
		http.Error(w, "error, n invalid", http.StatusBadRequest)
		return
	}

	observations, err := handler.analyzer.Recent(ctx, n)
	if err != nil {
		log.Errorf("recent observations error: %s", err)
		http.Error(w, "failed to get recent observations", http.StatusInternalServerError)
		return
	}

	if len(observations) == 0 {
		observations = []logstore.Observation{}
	}

	observationsJson, err := json.Marshal(observations)
	if err != nil {
		log.Errorf("marshal recent observations error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(observationsJson))
}

func seriesRows(series *Series, expenditure *ExpenditureEstimate) []seriesRow {
	rows := make([]seriesRow, series.Len())
	for i := range rows {
		rows[i] = seriesRow{
			Date:         series.Days[i].Format(time.DateOnly),
			Weight:       defined(series.Weight[i]),
			RawWeight:    defined(series.RawWeight[i]),
			Calories:     defined(series.Calories[i]),
			WeightMA:     defined(series.WeightMA[i]),
			CalorieMA:    defined(series.CalorieMA[i]),
			WeightDelta:  defined(series.WeightDelta[i]),
			SMA7:         defined(series.SMA7[i]),
			DaysOut:      series.DaysOut[i],
			TDEERaw:      defined(expenditure.Raw[i]),
			TDEESmoothed: defined(expenditure.Smoothed[i]),
		}
	}
	return rows
}

func defined(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
