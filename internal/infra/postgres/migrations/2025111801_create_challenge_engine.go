package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_challenge_engine.sql
var createChallengeEngineSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createChallengeEngineSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS user_stats;
				DROP TABLE IF EXISTS attempts;
				DROP TABLE IF EXISTS questions;
				DROP TABLE IF EXISTS daily_challenges;
				DROP TABLE IF EXISTS shown_in_cycle;
				DROP TABLE IF EXISTS rotation_tracks;
				DROP TABLE IF EXISTS countries;
			`)
			return err
		},
	)
}
