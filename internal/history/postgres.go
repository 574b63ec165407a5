package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/Hexo/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	id              TEXT PRIMARY KEY,
	config          TEXT NOT NULL,
	number_of_games INTEGER NOT NULL,
	user_ids        TEXT[] NOT NULL,
	usernames       TEXT[] NOT NULL,
	scores          INTEGER[] NOT NULL,
	winner_slot     INTEGER NOT NULL,
	reason          TEXT NOT NULL,
	games           JSONB NOT NULL,
	ended_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS matches_user_ids_idx ON matches USING GIN (user_ids);
`

type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects and makes sure the table exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	log.Info().Str("module", "history").Msg("postgres history ready")
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) Record(ctx context.Context, rec domain.MatchRecord) error {
	games, err := json.Marshal(rec.Games)
	if err != nil {
		return fmt.Errorf("encode games: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO matches (id, config, number_of_games, user_ids, usernames, scores, winner_slot, reason, games, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		string(rec.ID),
		string(rec.Config),
		int32(rec.NumberOfGames),
		[]string{string(rec.Users[0].ID), string(rec.Users[1].ID)},
		[]string{rec.Users[0].Username, rec.Users[1].Username},
		[]int32{int32(rec.Scores[0]), int32(rec.Scores[1])},
		int32(rec.WinnerSlot),
		string(rec.Reason),
		string(games),
		rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match %s: %w", rec.ID, err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, user domain.UserID, limit int) ([]domain.MatchRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, config, number_of_games, user_ids, usernames, scores, winner_slot, reason, games, ended_at
		FROM matches
		WHERE $1 = ANY(user_ids)
		ORDER BY ended_at DESC
		LIMIT $2`, string(user), limit)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	out := make([]domain.MatchRecord, 0)
	for rows.Next() {
		var (
			id, config, reason string
			games              []byte
			n, winner          int32
			ids, names         []string
			scores             []int32
			endedAt            time.Time
		)
		if err := rows.Scan(&id, &config, &n, &ids, &names, &scores, &winner, &reason, &games, &endedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if len(ids) != 2 || len(names) != 2 || len(scores) != 2 {
			return nil, fmt.Errorf("match %s: malformed row", id)
		}
		rec := domain.MatchRecord{
			ID:            domain.MatchID(id),
			Config:        domain.MatchConfig(config),
			NumberOfGames: uint32(n),
			Users: domain.Pair[domain.User]{
				{ID: domain.UserID(ids[0]), Username: names[0]},
				{ID: domain.UserID(ids[1]), Username: names[1]},
			},
			Scores:     domain.Pair[uint32]{uint32(scores[0]), uint32(scores[1])},
			WinnerSlot: int(winner),
			Reason:     domain.EndReason(reason),
			EndedAt:    endedAt,
		}
		if err := json.Unmarshal(games, &rec.Games); err != nil {
			return nil, fmt.Errorf("decode games of %s: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
