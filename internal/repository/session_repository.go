// internal/repository/session_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"biosignal-service/internal/database"
	"biosignal-service/internal/model"
	"biosignal-service/internal/utils"
)

const sessionColumns = `
	id, started_at, ended_at, duration_ms, sample_count,
	avg_heart_rate, avg_resp_rate, mean_heart_rate, mean_resp_rate,
	reason, source, created_at`

// sessionRepository implements SessionRepository on postgres
type sessionRepository struct {
	db     *database.DB
	logger *utils.ServiceLogger
}

// NewSessionRepository creates a postgres backed session repository
func NewSessionRepository(db *database.DB, logger *zap.Logger) SessionRepository {
	return &sessionRepository{
		db:     db,
		logger: utils.NewServiceLogger(logger, "session-repository"),
	}
}

// Save inserts a finalized result
func (r *sessionRepository) Save(ctx context.Context, result *model.SessionResult) error {
	query := `
		INSERT INTO session_results (` + sessionColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}

	args := []interface{}{
		result.ID, result.StartedAt, result.EndedAt, result.Duration.Milliseconds(),
		result.SampleCount, int(result.AvgHeartRate), int(result.AvgRespRate),
		result.MeanHeartRate, result.MeanRespRate,
		string(result.Reason), result.Source, result.CreatedAt,
	}

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query, args...)
	r.logger.LogDatabaseQuery("insert session_results", args, time.Since(start), err)

	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("session %s: %w", result.ID, ErrSessionExists)
		}
		return fmt.Errorf("failed to save session result: %w", err)
	}

	r.logger.Info("Session result saved", zap.String("session_id", result.ID.String()))
	return nil
}

// GetByID retrieves a result by its ID
func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SessionResult, error) {
	query := `SELECT ` + sessionColumns + ` FROM session_results WHERE id = $1`

	result, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to get session result: %w", err)
	}

	return result, nil
}

// List retrieves results matching the filter, newest first
func (r *sessionRepository) List(ctx context.Context, filter *SessionFilter) ([]*model.SessionResult, int, error) {
	filter.Normalize()

	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.Reason != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("reason = $%d", argIndex))
		args = append(args, string(*filter.Reason))
		argIndex++
	}

	if filter.Since != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("started_at >= $%d", argIndex))
		args = append(args, *filter.Since)
		argIndex++
	}

	if filter.Until != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("started_at < $%d", argIndex))
		args = append(args, *filter.Until)
		argIndex++
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM session_results %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count session results: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM session_results %s
		ORDER BY started_at DESC
		LIMIT $%d OFFSET $%d
	`, sessionColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	r.logger.LogDatabaseQuery("list session_results", args, time.Since(start), err)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list session results: %w", err)
	}
	defer rows.Close()

	results := []*model.SessionResult{}
	for rows.Next() {
		result, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan session result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate session results: %w", err)
	}

	return results, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*model.SessionResult, error) {
	var (
		result     model.SessionResult
		durationMs int64
		avgHR      int
		avgRR      int
		reason     string
	)

	err := row.Scan(
		&result.ID, &result.StartedAt, &result.EndedAt, &durationMs, &result.SampleCount,
		&avgHR, &avgRR, &result.MeanHeartRate, &result.MeanRespRate,
		&reason, &result.Source, &result.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	result.Duration = time.Duration(durationMs) * time.Millisecond
	result.AvgHeartRate = uint16(avgHR)
	result.AvgRespRate = uint16(avgRR)
	result.Reason = model.SessionEndReason(reason)
	return &result, nil
}
