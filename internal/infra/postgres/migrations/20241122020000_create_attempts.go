package migrations

import _ "embed"

//go:embed sql/0002_create_attempts.sql
var createAttemptsSQL string

func init() {
	Migrations.MustRegister(
		execSQL(createAttemptsSQL),
		execSQL(`DROP TABLE IF EXISTS attempt_answers, quiz_attempts`),
	)
}
