package logstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yuta66jp/bodymake-dashboard/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrObservationNotFound = errors.New("observation not found")
	ErrFoodItemNotFound    = errors.New("food item not found")
	ErrMenuNotFound        = errors.New("menu not found")
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// UpsertObservation writes the daily log row for obs.LogDate. A second
// write for the same date overwrites the first one; the returned
// observation carries the definitive id and created_at.
func (r *Repo) UpsertObservation(ctx context.Context, obs Observation) (_ *Observation, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.logstore.upsertObservation")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if obs.LogDate.IsZero() {
		return nil, errors.New("observation log date empty")
	}
	if obs.WeightKg <= 0 {
		return nil, errors.New("observation weight must be positive")
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO daily_log
				(log_date, weight_kg, calories, protein_g, fat_g, carbs_g, body_fat_pct, note, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (log_date) DO UPDATE SET
				weight_kg = EXCLUDED.weight_kg,
				calories = EXCLUDED.calories,
				protein_g = EXCLUDED.protein_g,
				fat_g = EXCLUDED.fat_g,
				carbs_g = EXCLUDED.carbs_g,
				body_fat_pct = EXCLUDED.body_fat_pct,
				note = EXCLUDED.note,
				created_at = EXCLUDED.created_at
			RETURNING id;`,
		obs.LogDate, obs.WeightKg, obs.Calories, obs.ProteinG, obs.FatG, obs.CarbsG, obs.BodyFatPct, obs.Note, obs.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("observation.id", id))

	obs.ID = id
	return &obs, nil
}

func (r *Repo) GetObservation(ctx context.Context, logDate time.Time) (_ *Observation, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.logstore.getObservation")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("logDate", logDate.Format(DateLayout)))

	rows, err := r.db.Query(
		ctx,
		`SELECT
			id, log_date, weight_kg, calories, protein_g, fat_g, carbs_g, body_fat_pct, note, created_at
		FROM daily_log WHERE log_date = $1;`,
		logDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, ErrObservationNotFound
	}

	obs, err := scanObservation(rows)
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// ListObservations returns the daily log ordered by date ascending.
// Nil from/to bounds are open.
func (r *Repo) ListObservations(ctx context.Context, from, to *time.Time) (_ []Observation, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.logstore.listObservations")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	query := `SELECT
			id, log_date, weight_kg, calories, protein_g, fat_g, carbs_g, body_fat_pct, note, created_at
		FROM daily_log`
	var args []interface{}
	switch {
	case from != nil && to != nil:
		query += ` WHERE log_date >= $1 AND log_date <= $2`
		args = append(args, *from, *to)
	case from != nil:
		query += ` WHERE log_date >= $1`
		args = append(args, *from)
	case to != nil:
		query += ` WHERE log_date <= $1`
		args = append(args, *to)
	}
	query += ` ORDER BY log_date ASC;`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rows2observations(rows)
}

// ListRecentObservations returns the last n daily logs, newest first.
func (r *Repo) ListRecentObservations(ctx context.Context, n int) (_ []Observation, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.logstore.listRecentObservations")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("n", n))

	rows, err := r.db.Query(
		ctx,
		`SELECT
			id, log_date, weight_kg, calories, protein_g, fat_g, carbs_g, body_fat_pct, note, created_at
		FROM daily_log ORDER BY log_date DESC LIMIT $1;`,
		n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rows2observations(rows)
}

func (r *Repo) DeleteObservation(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.logstore.deleteObservation")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM daily_log WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrObservationNotFound
	}
	return nil
}

func (r *Repo) AddFoodItem(ctx context.Context, item FoodItem) (_ *FoodItem, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.logstore.addFoodItem")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if item.Name == "" {
		return nil, errors.New("food item name empty")
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO food_item
				(name, unit, calories, protein_g, fat_g, carbs_g)
				VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id;`,
		item.Name, item.Unit, item.Calories, item.ProteinG, item.FatG, item.CarbsG,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	item.ID = id
	return &item, nil
}

func (r *Repo) UpdateFoodItem(ctx context.Context, item *FoodItem) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.logstore.updateFoodItem")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", item.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE food_item SET name = $1, unit = $2, calories = $3, protein_g = $4, fat_g = $5, carbs_g = $6 WHERE id = $7;`,
		item.Name, item.Unit, item.Calories, item.ProteinG, item.FatG, item.CarbsG, item.ID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrFoodItemNotFound
	}

	return nil
}

func (r *Repo) DeleteFoodItem(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.logstore.deleteFoodItem")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM food_item WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFoodItemNotFound
	}
	return nil
}

func (r *Repo) ListFoodItems(ctx context.Context) (_ []FoodItem, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.logstore.listFoodItems")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT
			id, name, unit, calories, protein_g, fat_g, carbs_g
		FROM food_item ORDER BY name ASC;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	var items []FoodItem
	for rows.Next() {
		var item FoodItem
		if err := rows.Scan(
			&item.ID, &item.Name, &item.Unit, &item.Calories, &item.ProteinG, &item.FatG, &item.CarbsG,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

func (r *Repo) AddMenu(ctx context.Context, menu Menu) (_ *Menu, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.logstore.addMenu")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if menu.Name == "" {
		return nil, errors.New("menu name empty")
	}

	recipeJson, err := json.Marshal(menu.Recipe)
	if err != nil {
		return nil, fmt.Errorf("marshal recipe: %w", err)
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO menu (name, recipe, created_at) VALUES ($1, $2, $3) RETURNING id;`,
		menu.Name, recipeJson, menu.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	menu.ID = id
	return &menu, nil
}

func (r *Repo) DeleteMenu(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.logstore.deleteMenu")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM menu WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMenuNotFound
	}
	return nil
}

func (r *Repo) ListMenus(ctx context.Context) (_ []Menu, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.logstore.listMenus")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, recipe, created_at FROM menu ORDER BY created_at DESC;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	var menus []Menu
	for rows.Next() {
		var menu Menu
		var recipeJson []byte
		if err := rows.Scan(&menu.ID, &menu.Name, &recipeJson, &menu.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(recipeJson, &menu.Recipe); err != nil {
			return nil, fmt.Errorf("unmarshal recipe: %w", err)
		}
		menus = append(menus, menu)
	}

	return menus, nil
}

// GetSettings reads all settings rows; missing keys fall back to
// DefaultSettings with a warning.
func (r *Repo) GetSettings(ctx context.Context) (_ *Settings, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.logstore.getSettings")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT key, value_num, value_str FROM settings;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	settings := DefaultSettings()
	seen := make(map[string]bool)
	for rows.Next() {
		var key string
		var valueNum *float64
		var valueStr *string
		if err := rows.Scan(&key, &valueNum, &valueStr); err != nil {
			return nil, err
		}
		seen[key] = true
		switch key {
		case SettingKeyTargetDate:
			if valueStr == nil {
				continue
			}
			targetDate, err := time.Parse(DateLayout, *valueStr)
			if err != nil {
				log.Warnf("settings: invalid target date [%s], using default", *valueStr)
				continue
			}
			settings.TargetDate = targetDate
		case SettingKeyPhase:
			if valueStr != nil {
				settings.Phase = *valueStr
			}
		case SettingKeyTargetWeight:
			if valueNum != nil {
				settings.TargetWeightKg = *valueNum
			}
		case SettingKeyMonthlyTarget:
			if valueNum != nil {
				settings.MonthlyTargetWeightKg = *valueNum
			}
		default:
			log.Warnf("settings: unknown key [%s] ignored", key)
		}
	}

	for _, key := range []string{
		SettingKeyTargetDate, SettingKeyPhase, SettingKeyTargetWeight, SettingKeyMonthlyTarget,
	} {
		if !seen[key] {
			log.Warnf("settings: key [%s] missing, using default", key)
		}
	}

	return &settings, nil
}

// SetSetting upserts a single settings row by key.
func (r *Repo) SetSetting(ctx context.Context, key string, valueNum *float64, valueStr *string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.logstore.setSetting")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("key", key))

	if key == "" {
		return errors.New("settings key empty")
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO settings (key, value_num, value_str) VALUES ($1, $2, $3)
			ON CONFLICT (key) DO UPDATE SET
				value_num = EXCLUDED.value_num,
				value_str = EXCLUDED.value_str;`,
		key, valueNum, valueStr,
	)
	return err
}

type observationScanner interface {
	Scan(dest ...interface{}) error
}

func scanObservation(row observationScanner) (*Observation, error) {
	var obs Observation
	if err := row.Scan(
		&obs.ID, &obs.LogDate, &obs.WeightKg,
		&obs.Calories, &obs.ProteinG, &obs.FatG, &obs.CarbsG,
		&obs.BodyFatPct, &obs.Note, &obs.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &obs, nil
}

func rows2observations(rows observationRows) ([]Observation, error) {
	var observations []Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, *obs)
	}
	return observations, nil
}

type observationRows interface {
	observationScanner
	Next() bool
}
