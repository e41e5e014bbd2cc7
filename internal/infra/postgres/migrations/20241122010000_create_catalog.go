package migrations

import _ "embed"

//go:embed sql/0001_create_catalog.sql
var createCatalogSQL string

func init() {
	Migrations.MustRegister(
		execSQL(createCatalogSQL),
		execSQL(`DROP TABLE IF EXISTS answer_options, questions, quizzes, categories, guests, users`),
	)
}
