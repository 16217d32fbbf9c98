package repository

import (
	"context"
	"database/sql"
	"strings"
)

// AllowList answers whether a provider login id is registered to use the
// bot.  A rejected id resets the conversation and fires a broadcast notice,
// so lookups must be cheap and never panic.
type AllowList interface {
	Contains(ctx context.Context, loginID string) (bool, error)
}

// AllowListRepo reads the allow-list from the `allowed_passengers` table.
// The table is maintained out of band; the bot never writes to it.
type AllowListRepo struct {
	db *sql.DB
}

// NewAllowListRepo returns a repo bound to the provided database.
func NewAllowListRepo(db *sql.DB) *AllowListRepo { return &AllowListRepo{db: db} }

// Contains reports whether loginID appears in allowed_passengers.
func (r *AllowListRepo) Contains(ctx context.Context, loginID string) (bool, error) {
	if r == nil || r.db == nil {
		return false, ErrUnavailable
	}
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM allowed_passengers WHERE login_id = ? LIMIT 1`,
		loginID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// StaticAllowList is the env-var fallback used when no database is
// configured: a comma-separated list of login ids.
type StaticAllowList map[string]bool

// NewStaticAllowList parses a comma-separated id list.  Blank entries are
// dropped.
func NewStaticAllowList(csv string) StaticAllowList {
	l := StaticAllowList{}
	for _, id := range strings.Split(csv, ",") {
		if id = strings.TrimSpace(id); id != "" {
			l[id] = true
		}
	}
	return l
}

// Contains reports membership; it never errors.
func (l StaticAllowList) Contains(_ context.Context, loginID string) (bool, error) {
	return l[loginID], nil
}
