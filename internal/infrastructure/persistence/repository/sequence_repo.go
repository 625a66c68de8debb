package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/infrastructure/persistence/sqlite"
)

// SequenceRepository implements port.SequenceRepository on the sequences table
type SequenceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *sql.DB, logger *zap.Logger) port.SequenceRepository {
	return &SequenceRepository{db: db, logger: logger}
}

// Next increments and returns the counter for (company, scope, period), starting at 1.
// Callers run it inside the transaction that consumes the number so a rollback
// gives the number back.
func (r *SequenceRepository) Next(ctx context.Context, companyID int64, scope, period string) (int64, error) {
	var value int64
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO sequences (company_id, scope, period, last_value)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (company_id, scope, period) DO UPDATE SET last_value = last_value + 1
		RETURNING last_value
	`, companyID, scope, period).Scan(&value)
	if err != nil {
		r.logger.Error("Failed to advance sequence",
			zap.Int64("company_id", companyID),
			zap.String("scope", scope),
			zap.String("period", period),
			zap.Error(err))
		return 0, fmt.Errorf("failed to advance sequence: %w", err)
	}
	return value, nil
}
