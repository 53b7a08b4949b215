package logstore

import (
	"context"
	"sort"
	"time"
)

type repoMock struct {
	observations map[string]*Observation
	foodItems    map[int]*FoodItem
	menus        map[int]*Menu
	settings     map[string]settingRow
	nextID       int
}

type settingRow struct {
	valueNum *float64
	valueStr *string
}

func NewMockRepo() *repoMock {
	return &repoMock{
		observations: make(map[string]*Observation),
		foodItems:    make(map[int]*FoodItem),
		menus:        make(map[int]*Menu),
		settings:     make(map[string]settingRow),
		nextID:       1,
	}
}

func (r *repoMock) UpsertObservation(_ context.Context, obs Observation) (*Observation, error) {
	key := obs.LogDate.Format(DateLayout)
	if existing, ok := r.observations[key]; ok {
		obs.ID = existing.ID
	} else {
		obs.ID = r.nextID
		r.nextID++
	}
	r.observations[key] = &obs
	return &obs, nil
}

func (r *repoMock) GetObservation(_ context.Context, logDate time.Time) (*Observation, error) {
	obs, ok := r.observations[logDate.Format(DateLayout)]
	if !ok {
		return nil, ErrObservationNotFound
	}
	return obs, nil
}

func (r *repoMock) ListObservations(_ context.Context, from, to *time.Time) ([]Observation, error) {
	var observations []Observation
	for _, obs := range r.observations {
		if from != nil && obs.LogDate.Before(*from) {
			continue
		}
		if to != nil && obs.LogDate.After(*to) {
			continue
		}
		observations = append(observations, *obs)
	}
	sort.Slice(observations, func(i, j int) bool {
		return observations[i].LogDate.Before(observations[j].LogDate)
	})
	return observations, nil
}

func (r *repoMock) ListRecentObservations(ctx context.Context, n int) ([]Observation, error) {
	all, err := r.ListObservations(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].LogDate.After(all[j].LogDate)
	})
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (r *repoMock) DeleteObservation(_ context.Context, id int) error {
	for key, obs := range r.observations {
		if obs.ID == id {
			delete(r.observations, key)
			return nil
		}
	}
	return ErrObservationNotFound
}

func (r *repoMock) AddFoodItem(_ context.Context, item FoodItem) (*FoodItem, error) {
	item.ID = r.nextID
	r.nextID++
	r.foodItems[item.ID] = &item
	return &item, nil
}

func (r *repoMock) UpdateFoodItem(_ context.Context, item *FoodItem) error {
	if _, ok := r.foodItems[item.ID]; !ok {
		return ErrFoodItemNotFound
	}
	r.foodItems[item.ID] = item
	return nil
}

func (r *repoMock) DeleteFoodItem(_ context.Context, id int) error {
	if _, ok := r.foodItems[id]; !ok {
		return ErrFoodItemNotFound
	}
	delete(r.foodItems, id)
	return nil
}

func (r *repoMock) ListFoodItems(context.Context) ([]FoodItem, error) {
	var items []FoodItem
	for _, item := range r.foodItems {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items, nil
}

func (r *repoMock) AddMenu(_ context.Context, menu Menu) (*Menu, error) {
	menu.ID = r.nextID
	r.nextID++
	r.menus[menu.ID] = &menu
	return &menu, nil
}

func (r *repoMock) DeleteMenu(_ context.Context, id int) error {
	if _, ok := r.menus[id]; !ok {
		return ErrMenuNotFound
	}
	delete(r.menus, id)
	return nil
}

func (r *repoMock) ListMenus(context.Context) ([]Menu, error) {
	var menus []Menu
	for _, menu := range r.menus {
		menus = append(menus, *menu)
	}
	sort.Slice(menus, func(i, j int) bool {
		return menus[i].ID < menus[j].ID
	})
	return menus, nil
}

func (r *repoMock) GetSettings(context.Context) (*Settings, error) {
	settings := DefaultSettings()
	if row, ok := r.settings[SettingKeyTargetDate]; ok && row.valueStr != nil {
		if targetDate, err := time.Parse(DateLayout, *row.valueStr); err == nil {
			settings.TargetDate = targetDate
		}
	}
	if row, ok := r.settings[SettingKeyPhase]; ok && row.valueStr != nil {
		settings.Phase = *row.valueStr
	}
	if row, ok := r.settings[SettingKeyTargetWeight]; ok && row.valueNum != nil {
		settings.TargetWeightKg = *row.valueNum
	}
	if row, ok := r.settings[SettingKeyMonthlyTarget]; ok && row.valueNum != nil {
		settings.MonthlyTargetWeightKg = *row.valueNum
	}
	return &settings, nil
}

func (r *repoMock) SetSetting(_ context.Context, key string, valueNum *float64, valueStr *string) error {
	r.settings[key] = settingRow{valueNum: valueNum, valueStr: valueStr}
	return nil
}
