package logstore

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/yuta66jp/bodymake-dashboard/internal/telemetry/metrics"
	"github.com/yuta66jp/bodymake-dashboard/internal/telemetry/tracing"
	"github.com/yuta66jp/bodymake-dashboard/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// ForecastInvalidator drops cached forecasts after a write to the daily log.
type ForecastInvalidator interface {
	Invalidate()
}

type Handler struct {
	repo        Api
	metrics     *metrics.Manager
	invalidator ForecastInvalidator
}

func NewHandler(
	repo Api,
	metricsManager *metrics.Manager,
	invalidator ForecastInvalidator,
) *Handler {
	return &Handler{
		repo:        repo,
		metrics:     metricsManager,
		invalidator: invalidator,
	}
}

type upsertLogRequest struct {
	LogDate    string   `json:"logDate"`
	WeightKg   float64  `json:"weightKg"`
	Calories   *float64 `json:"calories,omitempty"`
	ProteinG   *float64 `json:"proteinG,omitempty"`
	FatG       *float64 `json:"fatG,omitempty"`
	CarbsG     *float64 `json:"carbsG,omitempty"`
	BodyFatPct *float64 `json:"bodyFatPct,omitempty"`
	Note       string   `json:"note,omitempty"`
}

func (handler *Handler) HandleUpsertLog(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.logstore.upsertLog")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req upsertLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("upsert daily log, unmarshal json params: %s", err)
		http.Error(w, "upsert daily log failed", http.StatusBadRequest)
		return
	}

	logDate, err := time.Parse(DateLayout, req.LogDate)
	if err != nil {
		http.Error(w, "error, invalid log date", http.StatusBadRequest)
		return
	}
	if req.WeightKg <= 0 {
		http.Error(w, "error, weight must be positive", http.StatusBadRequest)
		return
	}

	obs := Observation{
		LogDate:    logDate,
		WeightKg:   req.WeightKg,
		Calories:   req.Calories,
		ProteinG:   req.ProteinG,
		FatG:       req.FatG,
		CarbsG:     req.CarbsG,
		BodyFatPct: req.BodyFatPct,
		Note:       req.Note,
		CreatedAt:  time.Now(),
	}

	addedObs, err := handler.repo.UpsertObservation(ctx, obs)
	if err != nil {
		log.Errorf("failed to upsert daily log [%s]: %s", req.LogDate, err)
		http.Error(w, "error, failed to upsert daily log", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterLogWrites.Inc()
	if handler.invalidator != nil {
		handler.invalidator.Invalidate()
	}

	obsJson, err := json.Marshal(addedObs)
	if err != nil {
		log.Errorf("failed to marshal upserted daily log: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("daily log upserted: [%s] id %d", req.LogDate, addedObs.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, obsJson, http.StatusCreated)
}

func (handler *Handler) HandleGetLog(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.logstore.getLog")
	defer span.End()

	vars := mux.Vars(r)
	logDate, err := time.Parse(DateLayout, vars["date"])
	if err != nil {
		http.Error(w, "error, invalid log date", http.StatusBadRequest)
		return
	}

	obs, err := handler.repo.GetObservation(ctx, logDate)
	if err != nil {
		if errors.Is(err, ErrObservationNotFound) {
			http.Error(w, "daily log not found", http.StatusNotFound)
			return
		}
		log.Errorf("get daily log [%s] error: %s", vars["date"], err)
		http.Error(w, "failed to get daily log", http.StatusInternalServerError)
		return
	}

	obsJson, err := json.Marshal(obs)
	if err != nil {
		log.Errorf("marshal daily log error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(obsJson))
}

func (handler *Handler) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.logstore.listLogs")
	defer span.End()

	var from, to *time.Time
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		fromDate, err := time.Parse(DateLayout, fromStr)
		if err != nil {
			http.Error(w, "error, invalid from date", http.StatusBadRequest)
			return
		}
		from = &fromDate
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		toDate, err := time.Parse(DateLayout, toStr)
		if err != nil {
			http.Error(w, "error, invalid to date", http.StatusBadRequest)
			return
		}
		to = &toDate
	}

	observations, err := handler.repo.ListObservations(ctx, from, to)
	if err != nil {
		log.Errorf("list daily logs error: %s", err)
		http.Error(w, "failed to list daily logs", http.StatusInternalServerError)
		return
	}

	if len(observations) == 0 {
		observations = []Observation{}
	}

	observationsJson, err := json.Marshal(observations)
	if err != nil {
		log.Errorf("marshal daily logs error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(observationsJson))
}

func (handler *Handler) HandleDeleteLog(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.logstore.deleteLog")
	defer span.End()

	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "error, id invalid", http.StatusBadRequest)
		return
	}

	if err := handler.repo.DeleteObservation(ctx, id); err != nil {
		if errors.Is(err, ErrObservationNotFound) {
			http.Error(w, "daily log not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete daily log %d: %s", id, err)
		http.Error(w, "error, daily log not deleted, internal server error", http.StatusInternalServerError)
		return
	}

	if handler.invalidator != nil {
		handler.invalidator.Invalidate()
	}

	pkg.WriteJSONResponseOK(w, `{"deletedId":`+strconv.Itoa(id)+`}`)
}

func (handler *Handler) HandleAddFood(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.logstore.addFood")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var item FoodItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		log.Tracef("add food item, unmarshal json params: %s", err)
		http.Error(w, "add food item failed", http.StatusBadRequest)
		return
	}

	if item.Name == "" {
		http.Error(w, "error, food item name empty", http.StatusBadRequest)
		return
	}

	addedItem, err := handler.repo.AddFoodItem(ctx, item)
	if err != nil {
		log.Errorf("failed to add food item [%s]: %s", item.Name, err)
		http.Error(w, "error, failed to add food item", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterFoodItems.Inc()

	itemJson, err := json.Marshal(addedItem)
	if err != nil {
		log.Errorf("failed to marshal food item: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, itemJson, http.StatusCreated)
}

func (handler *Handler) HandleUpdateFood(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.logstore.updateFood")
	defer span.End()

	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "error, id invalid", http.StatusBadRequest)
		return
	}

	var item FoodItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		log.Tracef("update food item, unmarshal json params: %s", err)
		http.Error(w, "update food item failed", http.StatusBadRequest)
		return
	}
	item.ID = id

	if err := handler.repo.UpdateFoodItem(ctx, &item); err != nil {
		if errors.Is(err, ErrFoodItemNotFound) {
			http.Error(w, "food item not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update food item %d: %s", id, err)
		http.Error(w, "error, failed to update food item", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, `{"updatedId":`+strconv.Itoa(id)+`}`)
}

func (handler *Handler) HandleDeleteFood(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.logstore.deleteFood")
	defer span.End()

	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "error, id invalid", http.StatusBadRequest)
		return
	}

	if err := handler.repo.DeleteFoodItem(ctx, id); err != nil {
		if errors.Is(err, ErrFoodItemNotFound) {
			http.Error(w, "food item not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete food item %d: %s", id, err)
		http.Error(w, "error, food item not deleted, internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, `{"deletedId":`+strconv.Itoa(id)+`}`)
}

func (handler *Handler) HandleListFood(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.logstore.listFood")
	defer span.End()

	items, err := handler.repo.ListFoodItems(ctx)
	if err != nil {
		log.Errorf("list food items error: %s", err)
		http.Error(w, "failed to list food items", http.StatusInternalServerError)
		return
	}

	if len(items) == 0 {
		items = []FoodItem{}
	}

	itemsJson, err := json.Marshal(items)
	if err != nil {
		log.Errorf("marshal food items error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(itemsJson))
}

func (handler *Handler) HandleAddMenu(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.logstore.addMenu")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var menu Menu
	if err := json.NewDecoder(r.Body).Decode(&menu); err != nil {
		log.Tracef("add menu, unmarshal json params: %s", err)
		http.Error(w, "add menu failed", http.StatusBadRequest)
		return
	}

	if menu.Name == "" || len(menu.Recipe) == 0 {
		http.Error(w, "error, menu name or recipe empty", http.StatusBadRequest)
		return
	}
	if menu.CreatedAt.IsZero() {
		menu.CreatedAt = time.Now()
	}

	addedMenu, err := handler.repo.AddMenu(ctx, menu)
	if err != nil {
		log.Errorf("failed to add menu [%s]: %s", menu.Name, err)
		http.Error(w, "error, failed to add menu", http.StatusInternalServerError)
		return
	}

	menuJson, err := json.Marshal(addedMenu)
	if err != nil {
		log.Errorf("failed to marshal menu: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, menuJson, http.StatusCreated)
}

func (handler *Handler) HandleDeleteMenu(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.logstore.deleteMenu")
	defer span.End()

	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "error, id invalid", http.StatusBadRequest)
		return
	}

	if err := handler.repo.DeleteMenu(ctx, id); err != nil {
		if errors.Is(err, ErrMenuNotFound) {
			http.Error(w, "menu not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete menu %d: %s", id, err)
		http.Error(w, "error, menu not deleted, internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, `{"deletedId":`+strconv.Itoa(id)+`}`)
}

func (handler *Handler) HandleListMenus(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.logstore.listMenus")
	defer span.End()

	menus, err := handler.repo.ListMenus(ctx)
	if err != nil {
		log.Errorf("list menus error: %s", err)
		http.Error(w, "failed to list menus", http.StatusInternalServerError)
		return
	}

	if len(menus) == 0 {
		menus = []Menu{}
	}

	menusJson, err := json.Marshal(menus)
	if err != nil {
		log.Errorf("marshal menus error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(menusJson))
}

func (handler *Handler) HandleCartTotal(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.logstore.cartTotal")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var cart []CartItem
	if err := json.NewDecoder(r.Body).Decode(&cart); err != nil {
		log.Tracef("cart total, unmarshal json params: %s", err)
		http.Error(w, "cart total failed", http.StatusBadRequest)
		return
	}

	items, err := handler.repo.ListFoodItems(ctx)
	if err != nil {
		log.Errorf("cart total, list food items error: %s", err)
		http.Error(w, "failed to compute cart total", http.StatusInternalServerError)
		return
	}

	itemsByName := make(map[string]FoodItem, len(items))
	for _, item := range items {
		itemsByName[item.Name] = item
	}

	var total CartTotal
	for _, cartItem := range cart {
		item, ok := itemsByName[cartItem.Name]
		if !ok {
			http.Error(w, "error, unknown food item: "+cartItem.Name, http.StatusBadRequest)
			return
		}
		total.Calories += item.Calories * cartItem.Servings
		total.ProteinG += item.ProteinG * cartItem.Servings
		total.FatG += item.FatG * cartItem.Servings
		total.CarbsG += item.CarbsG * cartItem.Servings
	}

	totalJson, err := json.Marshal(total)
	if err != nil {
		log.Errorf("marshal cart total error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(totalJson))
}

func (handler *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.logstore.getSettings")
	defer span.End()

	settings, err := handler.repo.GetSettings(ctx)
	if err != nil {
		log.Errorf("get settings error: %s", err)
		http.Error(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	settingsJson, err := json.Marshal(settings)
	if err != nil {
		log.Errorf("marshal settings error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(settingsJson))
}

type updateSettingsRequest struct {
	TargetDate            *string  `json:"targetDate,omitempty"`
	Phase                 *string  `json:"phase,omitempty"`
	TargetWeightKg        *float64 `json:"targetWeightKg,omitempty"`
	MonthlyTargetWeightKg *float64 `json:"monthlyTargetWeightKg,omitempty"`
}

func (handler *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.logstore.updateSettings")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("update settings, unmarshal json params: %s", err)
		http.Error(w, "update settings failed", http.StatusBadRequest)
		return
	}

	if req.TargetDate != nil {
		if _, err := time.Parse(DateLayout, *req.TargetDate); err != nil {
			http.Error(w, "error, invalid target date", http.StatusBadRequest)
			return
		}
		if err := handler.repo.SetSetting(ctx, SettingKeyTargetDate, nil, req.TargetDate); err != nil {
			log.Errorf("set target date error: %s", err)
			http.Error(w, "failed to update settings", http.StatusInternalServerError)
			return
		}
	}
	if req.Phase != nil {
		if *req.Phase != "Cut" && *req.Phase != "Bulk" {
			http.Error(w, "error, phase must be Cut or Bulk", http.StatusBadRequest)
			return
		}
		if err := handler.repo.SetSetting(ctx, SettingKeyPhase, nil, req.Phase); err != nil {
			log.Errorf("set phase error: %s", err)
			http.Error(w, "failed to update settings", http.StatusInternalServerError)
			return
		}
	}
	if req.TargetWeightKg != nil {
		if err := handler.repo.SetSetting(ctx, SettingKeyTargetWeight, req.TargetWeightKg, nil); err != nil {
			log.Errorf("set target weight error: %s", err)
			http.Error(w, "failed to update settings", http.StatusInternalServerError)
			return
		}
	}
	if req.MonthlyTargetWeightKg != nil {
		if err := handler.repo.SetSetting(ctx, SettingKeyMonthlyTarget, req.MonthlyTargetWeightKg, nil); err != nil {
			log.Errorf("set monthly target error: %s", err)
			http.Error(w, "failed to update settings", http.StatusInternalServerError)
			return
		}
	}

	if handler.invalidator != nil {
		handler.invalidator.Invalidate()
	}

	handler.HandleGetSettings(w, r)
}
