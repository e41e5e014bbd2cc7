package migrations

import _ "embed"

//go:embed sql/0003_create_leaderboards.sql
var createLeaderboardsSQL string

func init() {
	Migrations.MustRegister(
		execSQL(createLeaderboardsSQL),
		execSQL(`DROP TABLE IF EXISTS leaderboard_entries, leaderboards`),
	)
}
