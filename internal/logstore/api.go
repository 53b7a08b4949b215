package logstore

import (
	"context"
	"time"
)

type Api interface {
	UpsertObservation(ctx context.Context, obs Observation) (*Observation, error)
	GetObservation(ctx context.Context, logDate time.Time) (*Observation, error)
	ListObservations(ctx context.Context, from, to *time.Time) ([]Observation, error)
	ListRecentObservations(ctx context.Context, n int) ([]Observation, error)
	DeleteObservation(ctx context.Context, id int) error

	AddFoodItem(ctx context.Context, item FoodItem) (*FoodItem, error)
	UpdateFoodItem(ctx context.Context, item *FoodItem) error
	DeleteFoodItem(ctx context.Context, id int) error
	ListFoodItems(ctx context.Context) ([]FoodItem, error)

	AddMenu(ctx context.Context, menu Menu) (*Menu, error)
	DeleteMenu(ctx context.Context, id int) error
	ListMenus(ctx context.Context) ([]Menu, error)

	GetSettings(ctx context.Context) (*Settings, error)
	SetSetting(ctx context.Context, key string, valueNum *float64, valueStr *string) error
}
