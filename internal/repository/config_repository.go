package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/careerfair-reservation/internal/model"
)

// ConfigRepo stores one capacity row per session in `session_config`.
type ConfigRepo struct {
	db *sqlx.DB
}

func NewConfigRepo(db *sqlx.DB) *ConfigRepo { return &ConfigRepo{db: db} }

func (r *ConfigRepo) Get(ctx context.Context, s model.Session) (model.SessionConfig, error) {
	var cfg model.SessionConfig
	err := r.db.GetContext(ctx, &cfg, `SELECT session, capacity, updated_at FROM session_config WHERE session = ?`, s)
	if err != nil {
		return model.SessionConfig{}, notFound(err)
	}
	return cfg, nil
}

func (r *ConfigRepo) All(ctx context.Context) ([]model.SessionConfig, error) {
	cfgs := []model.SessionConfig{}
	if err := r.db.SelectContext(ctx, &cfgs, `SELECT session, capacity, updated_at FROM session_config ORDER BY session DESC`); err != nil {
		return nil, err
	}
	return cfgs, nil
}

// Set upserts the capacity of cfg.Session.
func (r *ConfigRepo) Set(ctx context.Context, cfg model.SessionConfig) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO session_config (session, capacity, updated_at) VALUES (:session, :capacity, :updated_at)
		ON DUPLICATE KEY UPDATE capacity = VALUES(capacity), updated_at = VALUES(updated_at)`, cfg)
	return err
}
