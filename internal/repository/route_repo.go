package repository

import (
	"context"

	"fleetdispatch/internal/model"

	"gorm.io/gorm"
)

// RouteRepository is the route metadata source, used to backfill missing
// route names on backlog items.
type RouteRepository interface {
	// MapByID returns all routes keyed by id string.
	MapByID(ctx context.Context) (map[string]model.Route, error)
}

type routeRepo struct{ db *gorm.DB }

func NewRouteRepository(db *gorm.DB) RouteRepository { return &routeRepo{db: db} }

func (r *routeRepo) MapByID(ctx context.Context) (map[string]model.Route, error) {
	var routes []model.Route
	if err := r.db.WithContext(ctx).Find(&routes).Error; err != nil {
		return nil, err
	}
	out := make(map[string]model.Route, len(routes))
	for _, rt := range routes {
		out[rt.ID.String()] = rt
	}
	return out, nil
}
