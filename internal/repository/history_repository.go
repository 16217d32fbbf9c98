package repository

import (
	"context"
	"database/sql"
)

// HistoryRepo appends one row to `reservation_history` per terminal job
// outcome.  The table is an audit trail for operators; writes are best-effort
// and the caller logs rather than propagates failures.
//
// Schema:
//
//	CREATE TABLE reservation_history (
//	  id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//	  session_id VARCHAR(64)  NOT NULL,
//	  login_id   VARCHAR(64)  NOT NULL,
//	  status     TINYINT      NOT NULL,
//	  detail     VARCHAR(512) NOT NULL,
//	  created_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP
//	);
type HistoryRepo struct {
	db *sql.DB
}

// NewHistoryRepo returns a repo bound to the provided database.
func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

// Record inserts one outcome row.  A nil repo (no database configured)
// returns ErrUnavailable so the caller can skip silently.
func (r *HistoryRepo) Record(ctx context.Context, sessionID, loginID string, status int, detail string) error {
	if r == nil || r.db == nil {
		return ErrUnavailable
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reservation_history (session_id, login_id, status, detail) VALUES (?, ?, ?, ?)`,
		sessionID, loginID, status, detail,
	)
	return err
}
