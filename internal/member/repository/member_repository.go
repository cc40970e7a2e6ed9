package repository

import (
	"context"
	"time"

	"realtime_chat_service/internal/member/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// MemberRepository last-seen store
type MemberRepository interface {
	EnsureSchema(ctx context.Context) error
	// UpdateLastSeen upsert; an older timestamp never overwrites a newer one
	UpdateLastSeen(ctx context.Context, username string, at time.Time) error
}

type memberRepository struct {
	db *pgxpool.Pool
}

// NewMemberRepository create a MemberRepository
func NewMemberRepository(db *pgxpool.Pool) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS member_presence (
        username  TEXT PRIMARY KEY,
        status    SMALLINT NOT NULL DEFAULT 0,
        last_seen TIMESTAMPTZ NOT NULL
      )`)
	return err
}

func (r *memberRepository) UpdateLastSeen(ctx context.Context, username string, at time.Time) error {
	_, err := r.db.Exec(ctx, `
      INSERT INTO member_presence(username, status, last_seen)
      VALUES ($1, $2, $3)
      ON CONFLICT (username) DO UPDATE
      SET status = EXCLUDED.status,
          last_seen = GREATEST(member_presence.last_seen, EXCLUDED.last_seen)
    `, username, domain.MemberStatusOffLine, at.UTC())
	return err
}
