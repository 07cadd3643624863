package repository

import (
	"context"
	"database/sql"
	"errors"

	"chargebook/internal/apperrors"
	"chargebook/internal/models"
)

// StationRepository reads station metadata (slots, tariff, operating status).
type StationRepository struct {
	db *sql.DB
}

// NewStationRepository returns repository.
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db}
}

// GetByID loads one station.
func (r *StationRepository) GetByID(ctx context.Context, id int64) (*models.Station, error) {
	const query = `
		SELECT id, name, total_slots, price_per_kwh, status
		FROM stations
		WHERE id = $1
	`
	var s models.Station
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.Name,
		&s.TotalSlots,
		&s.PricePerKWh,
		&s.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("station %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
