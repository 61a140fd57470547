package waifuwarmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating waifu war tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS entrants (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT '',
					grp TEXT NOT NULL DEFAULT '',
					image_ref TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_entrants_grp_lower ON entrants (lower(grp));
			`); err != nil {
				return fmt.Errorf("failed to create entrants table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS aliases (
					alias TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_aliases_name ON aliases (name);
			`); err != nil {
				return fmt.Errorf("failed to create aliases table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS brackets (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL UNIQUE,
					status SMALLINT NOT NULL DEFAULT 1 CHECK (status BETWEEN 1 AND 4),
					guild_id VARCHAR(20) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_brackets_guild_status ON brackets (guild_id, status);
				CREATE UNIQUE INDEX IF NOT EXISTS uq_brackets_one_votable_per_guild
					ON brackets (guild_id) WHERE status = 2;
			`); err != nil {
				return fmt.Errorf("failed to create brackets table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS roster (
					bracket_id BIGINT NOT NULL REFERENCES brackets(id) ON DELETE CASCADE,
					position INTEGER NOT NULL,
					name TEXT NOT NULL REFERENCES entrants(name) ON UPDATE CASCADE,
					PRIMARY KEY (bracket_id, position),
					CONSTRAINT uq_roster_bracket_name UNIQUE (bracket_id, name)
				);
			`); err != nil {
				return fmt.Errorf("failed to create roster table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS votes (
					id BIGSERIAL PRIMARY KEY,
					user_id VARCHAR(20) NOT NULL,
					bracket_id BIGINT NOT NULL REFERENCES brackets(id) ON DELETE CASCADE,
					division INTEGER NOT NULL CHECK (division > 0),
					choice BOOLEAN NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT uq_votes_user_bracket_division UNIQUE (user_id, bracket_id, division)
				);
				CREATE INDEX IF NOT EXISTS idx_votes_bracket_division ON votes (bracket_id, division);
			`); err != nil {
				return fmt.Errorf("failed to create votes table: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping waifu war tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, table := range []string{"votes", "roster", "brackets", "aliases", "entrants"} {
				if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
					return fmt.Errorf("failed to drop %s table: %w", table, err)
				}
			}
			return nil
		})
	})
}
