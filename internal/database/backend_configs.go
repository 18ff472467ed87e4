package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"resolvarr/models"
	"resolvarr/services/debrid"
)

// ErrBackendConfigNotFound is returned when no row matches the id.
var ErrBackendConfigNotFound = errors.New("backend config not found")

// BackendConfigStore implements debrid.ConfigStore on top of DB.
type BackendConfigStore struct {
	db  *DB
	now func() time.Time
}

var _ debrid.ConfigStore = (*BackendConfigStore)(nil)

func NewBackendConfigStore(db *DB) *BackendConfigStore {
	return &BackendConfigStore{db: db, now: time.Now}
}

const backendConfigColumns = `id, type, credential_ref, active, priority, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBackendConfig(row rowScanner) (models.BackendConfig, error) {
	var (
		cfg     models.BackendConfig
		typ     string
		active  bool
		created time.Time
		updated time.Time
	)
	if err := row.Scan(&cfg.ID, &typ, &cfg.CredentialRef, &active, &cfg.Priority, &created, &updated); err != nil {
		return models.BackendConfig{}, err
	}
	cfg.Type = models.BackendType(typ)
	cfg.Active = active
	cfg.CreatedAt = created.UTC()
	cfg.UpdatedAt = updated.UTC()
	return cfg, nil
}

// ListBackendConfigs returns every config ordered by priority, then id.
func (s *BackendConfigStore) ListBackendConfigs(ctx context.Context) ([]models.BackendConfig, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT `+backendConfigColumns+` FROM backend_configs ORDER BY priority, id`)
	if err != nil {
		return nil, fmt.Errorf("query backend configs: %w", err)
	}
	defer rows.Close()

	var configs []models.BackendConfig
	for rows.Next() {
		cfg, err := scanBackendConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backend config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backend configs: %w", err)
	}
	return configs, nil
}

func (s *BackendConfigStore) GetBackendConfig(ctx context.Context, id string) (*models.BackendConfig, error) {
	row := s.db.conn.QueryRowContext(ctx, `SELECT `+backendConfigColumns+` FROM backend_configs WHERE id = ?`, id)
	cfg, err := scanBackendConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBackendConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get backend config %s: %w", id, err)
	}
	return &cfg, nil
}

// SaveBackendConfig inserts or updates cfg. An empty ID gets a fresh UUID;
// CreatedAt is preserved across updates.
func (s *BackendConfigStore) SaveBackendConfig(ctx context.Context, cfg models.BackendConfig) error {
	if _, ok := models.ParseBackendType(string(cfg.Type)); !ok {
		return fmt.Errorf("unknown backend type %q", cfg.Type)
	}
	if strings.TrimSpace(cfg.CredentialRef) == "" {
		return errors.New("credential reference is required")
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	now := s.now().UTC()

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO backend_configs (id, type, credential_ref, active, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			credential_ref = excluded.credential_ref,
			active = excluded.active,
			priority = excluded.priority,
			updated_at = excluded.updated_at`,
		cfg.ID, string(cfg.Type), cfg.CredentialRef, cfg.Active, cfg.Priority, now, now)
	if err != nil {
		return fmt.Errorf("save backend config %s: %w", cfg.ID, err)
	}
	return nil
}

func (s *BackendConfigStore) DeleteBackendConfig(ctx context.Context, id string) error {
	res, err := s.db.conn.ExecContext(ctx, `DELETE FROM backend_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete backend config %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrBackendConfigNotFound
	}
	return nil
}
