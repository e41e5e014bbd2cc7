package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
	"quizhub-service/internal/infra/memory"
	"quizhub-service/internal/logging"
	"quizhub-service/internal/metrics"
)

type testServer struct {
	*httptest.Server
	hub *app.Hub
}

func newTestServer(t *testing.T, configure ...func(*app.Deps)) *testServer {
	t.Helper()
	st := memory.NewStore()
	st.AddUser(domain.User{ID: 1, Username: "alice", Country: "FR"})
	st.AddUser(domain.User{ID: 2, Username: "bob"})
	st.AddGuest(domain.Guest{ID: 1, SessionID: "s-1", DisplayName: "visitor"})

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	hub := app.NewHub()
	deps := app.Deps{
		Store:    st,
		Catalog:  memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuiz()), time.Minute, m),
		Notifier: hub,
		Metrics:  m,
		Log:      logging.Discard(),
	}
	for _, fn := range configure {
		fn(&deps)
	}
	boards := app.NewLeaderboardService(deps)
	router := NewRouter(RouterConfig{
		Handler:   NewHandler(app.NewAttemptService(deps), boards, app.NewActivityService(deps)),
		WSHandler: NewWSHandler(boards, hub),
		Log:       logging.Discard(),
		Gatherer:  reg,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testServer{Server: server, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// play starts and submits an attempt answering the first correct questions right.
func (s *testServer) play(t *testing.T, owner string, correct int) domain.Attempt {
	t.Helper()
	var started domain.Attempt
	if code := s.do(t, http.MethodPost, "/attempts", map[string]any{"quizId": 1, "owner": owner}, &started); code != http.StatusCreated {
		t.Fatalf("start: status %d", code)
	}
	var done domain.Attempt
	path := "/attempts/" + started.ID.String() + "/submit"
	if code := s.do(t, http.MethodPost, path, submission(correct), &done); code != http.StatusOK {
		t.Fatalf("submit: status %d", code)
	}
	return done
}

func TestAttemptFlowOverREST(t *testing.T) {
	s := newTestServer(t)

	done := s.play(t, "user:1", 2)
	if done.Status != domain.AttemptCompleted || done.Score != 70 || done.Percentage != 100 {
		t.Fatalf("unexpected completed attempt %+v", done)
	}
	if done.Owner != domain.UserOwner(1) {
		t.Fatalf("expected owner user:1, got %v", done.Owner)
	}
	s.play(t, "user:2", 1)

	var global domain.Standings
	if code := s.do(t, http.MethodGet, "/leaderboards/global?limit=5", nil, &global); code != http.StatusOK {
		t.Fatalf("leaderboard: status %d", code)
	}
	if len(global.Entries) != 2 || global.Entries[0].DisplayName != "alice" || global.Entries[0].Rank != 1 || global.Entries[1].Rank != 2 {
		t.Fatalf("unexpected global standings %+v", global.Entries)
	}

	var country domain.Standings
	if code := s.do(t, http.MethodGet, "/leaderboards/country?key=fr", nil, &country); code != http.StatusOK {
		t.Fatalf("country leaderboard: status %d", code)
	}
	// country boards are only filled by the batch rank rebuild
	if len(country.Entries) != 0 || country.Scope.Key != "FR" {
		t.Fatalf("unexpected country standings %+v", country)
	}

	var rankings []domain.QuizRanking
	if code := s.do(t, http.MethodGet, "/quizzes/1/rankings", nil, &rankings); code != http.StatusOK {
		t.Fatalf("rankings: status %d", code)
	}
	if len(rankings) != 2 || rankings[0].AttemptID != done.ID || rankings[0].DisplayName != "alice" {
		t.Fatalf("unexpected quiz rankings %+v", rankings)
	}

	var stats app.UserStats
	if code := s.do(t, http.MethodGet, "/users/1/stats", nil, &stats); code != http.StatusOK {
		t.Fatalf("stats: status %d", code)
	}
	if stats.TotalAttempts != 1 || stats.TotalPoints != 70 || stats.CurrentStreak != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	var recent []domain.Attempt
	if code := s.do(t, http.MethodGet, "/attempts?owner=user:1", nil, &recent); code != http.StatusOK {
		t.Fatalf("recent: status %d", code)
	}
	if len(recent) != 1 || recent[0].ID != done.ID {
		t.Fatalf("unexpected recent attempts %+v", recent)
	}

	var login loginResponse
	if code := s.do(t, http.MethodPost, "/users/2/login", nil, &login); code != http.StatusOK {
		t.Fatalf("login: status %d", code)
	}
	if login.UserID != 2 || login.StreakDays != 1 {
		t.Fatalf("unexpected login response %+v", login)
	}
}

func TestGetAttemptIncludesGradedAnswers(t *testing.T) {
	s := newTestServer(t)
	done := s.play(t, "user:1", 1)

	var detail app.AttemptDetail
	if code := s.do(t, http.MethodGet, "/attempts/"+done.ID.String(), nil, &detail); code != http.StatusOK {
		t.Fatalf("get attempt: status %d", code)
	}
	if detail.ID != done.ID || detail.Score != done.Score || len(detail.Answers) != 2 {
		t.Fatalf("unexpected attempt detail %+v", detail)
	}
	correct := 0
	for _, a := range detail.Answers {
		if a.AttemptID != done.ID {
			t.Fatalf("answer belongs to %s", a.AttemptID)
		}
		if a.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		t.Fatalf("expected one correct answer, got %d", correct)
	}

	var body errorBody
	if code := s.do(t, http.MethodGet, "/attempts/00000000-0000-0000-0000-000000000001", nil, &body); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown attempt, got %d", code)
	}
}

func TestGuestAttemptOverREST(t *testing.T) {
	s := newTestServer(t)
	done := s.play(t, "guest:1", 1)
	if done.Owner != domain.GuestOwner(1) || done.Score != 10 {
		t.Fatalf("unexpected guest attempt %+v", done)
	}

	var global domain.Standings
	s.do(t, http.MethodGet, "/leaderboards/global", nil, &global)
	if len(global.Entries) != 0 {
		t.Fatalf("guest attempts must not reach the global board, got %+v", global.Entries)
	}

	var rankings []domain.QuizRanking
	s.do(t, http.MethodGet, "/quizzes/1/rankings", nil, &rankings)
	if len(rankings) != 1 || rankings[0].DisplayName != "visitor" {
		t.Fatalf("unexpected quiz rankings %+v", rankings)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	done := s.play(t, "user:1", 1)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown attempt", http.MethodPost, "/attempts/9a1f3f2c-2d4e-4d7a-9a55-0d5c1f0e8b11/submit", submission(1), http.StatusNotFound, "not_found"},
		{"double submit", http.MethodPost, "/attempts/" + done.ID.String() + "/submit", submission(1), http.StatusConflict, "invalid_state"},
		{"abandon completed", http.MethodPost, "/attempts/" + done.ID.String() + "/abandon", nil, http.StatusConflict, "invalid_state"},
		{"malformed owner", http.MethodPost, "/attempts", map[string]any{"quizId": 1, "owner": "admin:1"}, http.StatusBadRequest, "contract_violation"},
		{"unknown quiz", http.MethodPost, "/attempts", map[string]any{"quizId": 42, "owner": "user:1"}, http.StatusNotFound, "not_found"},
		{"unknown user", http.MethodPost, "/attempts", map[string]any{"quizId": 1, "owner": "user:99"}, http.StatusNotFound, "not_found"},
		{"bad attempt id", http.MethodPost, "/attempts/nope/submit", submission(1), http.StatusBadRequest, "bad_request"},
		{"unknown board type", http.MethodGet, "/leaderboards/yearly", nil, http.StatusBadRequest, "contract_violation"},
		{"category without key", http.MethodGet, "/leaderboards/category", nil, http.StatusBadRequest, "contract_violation"},
		{"global with key", http.MethodGet, "/leaderboards/global?key=3", nil, http.StatusBadRequest, "contract_violation"},
		{"bad limit", http.MethodGet, "/leaderboards/global?limit=-1", nil, http.StatusBadRequest, "bad_request"},
		{"unknown user stats", http.MethodGet, "/users/99/stats", nil, http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body errorBody
			if code := s.do(t, tc.method, tc.path, tc.body, &body); code != tc.status {
				t.Fatalf("expected status %d, got %d (%+v)", tc.status, code, body)
			}
			if body.Error.Code != tc.code {
				t.Fatalf("expected code %s, got %+v", tc.code, body.Error)
			}
		})
	}
}

func TestUntouchedBoardIsEmpty(t *testing.T) {
	s := newTestServer(t)
	var st domain.Standings
	if code := s.do(t, http.MethodGet, "/leaderboards/category?key=3", nil, &st); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if st.Entries == nil || len(st.Entries) != 0 {
		t.Fatalf("expected empty entries, got %+v", st.Entries)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.play(t, "user:1", 2)

	resp, err := http.Get(s.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}

	resp, err = http.Get(s.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "quizhub_attempts_submitted_total") {
		t.Fatalf("expected quizhub metrics, got:\n%s", raw)
	}
}

// submission answers both questions of sampleQuiz, the first correct of them right.
func submission(correct int) app.Submission {
	right := []int64{101, 201}
	wrong := []int64{100, 202}
	questions := []int64{10, 20}
	sub := app.Submission{}
	for i, q := range questions {
		opt := wrong[i]
		if i < correct {
			opt = right[i]
		}
		sub.Answers = append(sub.Answers, domain.AnswerSubmission{QuestionID: q, OptionID: &opt})
	}
	return sub
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    1,
		Title: "Arithmetic",
		Questions: []domain.Question{
			{
				ID:   10,
				Text: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: 100, Text: "3"},
					{ID: 101, Text: "4", Correct: true},
				},
			},
			{
				ID:   20,
				Text: "What is 3 + 3?",
				Options: []domain.Option{
					{ID: 201, Text: "6", Correct: true},
					{ID: 202, Text: "7"},
				},
			},
		},
	}
}
