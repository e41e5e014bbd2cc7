package cli

import (
	"quizhub-service/internal/domain"
	"quizhub-service/internal/infra/memory"
)

// seedSampleData gives the in-memory store a few players to rank.
func seedSampleData(st *memory.Store) {
	st.AddUser(domain.User{ID: 1, Username: "ada", Country: "GB", CountryName: "United Kingdom"})
	st.AddUser(domain.User{ID: 2, Username: "grace", Country: "US", CountryName: "United States"})
	st.AddUser(domain.User{ID: 3, Username: "linus", Country: "FI", CountryName: "Finland"})
	st.AddGuest(domain.Guest{ID: 1, SessionID: "demo-session", DisplayName: "guest"})
}

// sampleQuizzes is the catalog served when no Postgres is configured.
func sampleQuizzes() []domain.Quiz {
	science := int64(1)
	limit := 60
	return []domain.Quiz{
		{
			ID:           1,
			Title:        "Arithmetic",
			MaxQuestions: 2,
			Questions: []domain.Question{
				{ID: 1, Text: "What is 2 + 2?", Options: []domain.Option{
					{ID: 1, Text: "3"},
					{ID: 2, Text: "4", Correct: true},
					{ID: 3, Text: "5"},
				}},
				{ID: 2, Text: "What is 3 x 3?", Options: []domain.Option{
					{ID: 4, Text: "9", Correct: true},
					{ID: 5, Text: "6"},
				}},
			},
		},
		{
			ID:           2,
			Title:        "Planets",
			CategoryID:   &science,
			CategoryName: "Science",
			TimeLimit:    &limit,
			Questions: []domain.Question{
				{ID: 3, Text: "Which planet is closest to the sun?", Options: []domain.Option{
					{ID: 6, Text: "Mercury", Correct: true},
					{ID: 7, Text: "Venus"},
				}},
				{ID: 4, Text: "Which planet has the most moons?", Options: []domain.Option{
					{ID: 8, Text: "Earth"},
					{ID: 9, Text: "Saturn", Correct: true},
				}},
				{ID: 5, Text: "Which planet is known as the red planet?", Options: []domain.Option{
					{ID: 10, Text: "Mars", Correct: true},
					{ID: 11, Text: "Jupiter"},
				}},
			},
		},
	}
}
