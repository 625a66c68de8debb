package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/internal/infrastructure/persistence/sqlite"
)

// ActivityRepository implements port.ActivityRepository
type ActivityRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sql.DB, logger *zap.Logger) port.ActivityRepository {
	return &ActivityRepository{db: db, logger: logger}
}

// Create appends an entry to the company's trail
func (r *ActivityRepository) Create(ctx context.Context, e *entity.ActivityEntry) error {
	details := []byte("{}")
	if len(e.Details) > 0 {
		var err error
		if details, err = json.Marshal(e.Details); err != nil {
			return fmt.Errorf("failed to encode activity details: %w", err)
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO activity_log (company_id, user_id, action, entity_type, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.CompanyID, nullableInt(e.UserID), e.Action, e.EntityType, e.EntityID, string(details), e.CreatedAt.UTC())
	if err != nil {
		r.logger.Error("Failed to record activity", zap.String("action", e.Action), zap.Error(err))
		return fmt.Errorf("failed to record activity: %w", err)
	}

	if e.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

// List returns a page of the company's trail, newest first
func (r *ActivityRepository) List(ctx context.Context, companyID int64, page port.Page) ([]*entity.ActivityEntry, int, error) {
	exec := sqlite.Conn(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_log WHERE company_id = ?`, companyID).Scan(&total); err != nil {
		r.logger.Error("Failed to count activity", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count activity: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT id, company_id, user_id, action, entity_type, entity_id, details, created_at
		FROM activity_log
		WHERE company_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, companyID, page.Limit, page.Offset)
	if err != nil {
		r.logger.Error("Failed to list activity", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	entries := make([]*entity.ActivityEntry, 0)
	for rows.Next() {
		var e entity.ActivityEntry
		var userID sql.NullInt64
		var details string
		if err := rows.Scan(&e.ID, &e.CompanyID, &userID, &e.Action, &e.EntityType, &e.EntityID,
			&details, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan activity: %w", err)
		}
		e.UserID = int64Ptr(userID)
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, 0, fmt.Errorf("failed to decode activity details: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}
