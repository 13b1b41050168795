package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/antichaos/antichaos/internal/api/models"
	"github.com/antichaos/antichaos/internal/config"
	"github.com/antichaos/antichaos/internal/database"
	dbmock "github.com/antichaos/antichaos/internal/database/mock"
	"github.com/antichaos/antichaos/internal/engine"
	"github.com/antichaos/antichaos/internal/identity"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

const (
	botToken        = "123456:test-token"
	adminTelegramID = 1000
)

type APITestSuite struct {
	suite.Suite
	ctx    context.Context
	db     *dbmock.MockDB
	server *Server
	now    time.Time
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.ctx = context.Background()
	s.db = dbmock.NewMockDB()
	s.now = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)
	s.Require().NoError(s.db.SeedCatalog(s.ctx))

	cfg := &config.Config{
		Listen:      "127.0.0.1:0",
		FrontendURL: "https://app.example",
		Timezone:    "UTC",
		Admins:      []int64{adminTelegramID},
		SessionKey:  "test-secret",
		Telegram:    &config.TelegramConfig{BotToken: botToken, SecretKey: botToken, APIURL: "http://127.0.0.1:1"},
		Reminder:    &config.ReminderConfig{Interval: time.Minute},
		Focus:       &config.FocusConfig{},
		Cache:       &config.CacheConfig{Type: config.CacheTypeMemory},
	}
	e, err := engine.New(cfg, s.db,
		engine.WithClock(func() time.Time { return s.now }),
		engine.WithRand(rand.New(rand.NewPCG(1, 2))),
	)
	s.Require().NoError(err)

	server, err := New(cfg, s.db, e, false)
	s.Require().NoError(err)
	s.server = server
}

func initData(telegramID int64, firstName string) string {
	values := url.Values{}
	values.Set("user", fmt.Sprintf(`{"id":%d,"first_name":%q}`, telegramID, firstName))
	values.Set("auth_date", "1715763600")
	values.Set("hash", identity.Sign(values, botToken))
	return values.Encode()
}

func (s *APITestSuite) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:1234"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(w, req)
	return w
}

func (s *APITestSuite) as(telegramID int64) map[string]string {
	return map[string]string{initDataHeader: initData(telegramID, "Ann")}
}

func (s *APITestSuite) decode(w *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (s *APITestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil, nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *APITestSuite) TestGuestIdentity() {
	w := s.do(http.MethodGet, "/api/users/me", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var guest models.User
	s.decode(w, &guest)
	s.True(guest.IsGuest)
	s.Less(guest.TelegramID, int64(0))

	token := w.Header().Get(guestHeader)
	s.Require().NotEmpty(token)

	w = s.do(http.MethodGet, "/api/users/me", nil, map[string]string{guestHeader: token, "X-Real-IP": "198.51.100.1"})
	s.Require().Equal(http.StatusOK, w.Code)
	var again models.User
	s.decode(w, &again)
	s.Equal(guest.ID, again.ID, "the guest token wins over the address")

	// same address, no token
	w = s.do(http.MethodGet, "/api/users/me", nil, nil)
	var byIP models.User
	s.decode(w, &byIP)
	s.Equal(guest.ID, byIP.ID)
}

func (s *APITestSuite) TestTelegramIdentity() {
	w := s.do(http.MethodGet, "/api/users/me", nil, s.as(42))
	s.Require().Equal(http.StatusOK, w.Code)
	var user models.User
	s.decode(w, &user)
	s.Equal(int64(42), user.TelegramID)
	s.Equal("Ann", user.FirstName)
	s.False(user.IsGuest)
	s.Empty(w.Header().Get(guestHeader))

	w = s.do(http.MethodGet, "/api/users/me", nil, map[string]string{initDataHeader: "user=%7B%22id%22%3A42%7D&hash=deadbeef"})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APITestSuite) TestIsAdmin() {
	var resp struct {
		IsAdmin bool `json:"is_admin"`
	}
	s.decode(s.do(http.MethodGet, "/api/users/is-admin", nil, s.as(42)), &resp)
	s.False(resp.IsAdmin)
	s.decode(s.do(http.MethodGet, "/api/users/is-admin", nil, s.as(adminTelegramID)), &resp)
	s.True(resp.IsAdmin)
}

func (s *APITestSuite) TestFocusAndDailyQuestion() {
	w := s.do(http.MethodPut, "/api/spheres/focus", models.FocusSpheresUpdate{Spheres: []string{"health", "health"}}, s.as(42))
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/spheres/focus", models.FocusSpheresUpdate{Spheres: []string{"money"}}, s.as(42))
	s.Require().Equal(http.StatusOK, w.Code)
	var focus []models.FocusSphere
	s.decode(w, &focus)
	s.Require().Len(focus, 1)
	s.Equal("money", focus[0].Sphere)

	w = s.do(http.MethodGet, "/api/questions/daily", nil, s.as(42))
	s.Require().Equal(http.StatusOK, w.Code)
	var q models.Question
	s.decode(w, &q)
	s.Equal("money", q.Sphere)
	s.Nil(q.IsActive)

	w = s.do(http.MethodPost, "/api/answers", models.AnswerCreate{QuestionID: q.ID, Answer: "fine"}, s.as(42))
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/answers?days=7", nil, s.as(42))
	s.Require().Equal(http.StatusOK, w.Code)
	var answers []models.Answer
	s.decode(w, &answers)
	s.Require().Len(answers, 1)
	s.Equal(q.ID, answers[0].QuestionID)

	w = s.do(http.MethodGet, "/api/answers?days=abc", nil, s.as(42))
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestNoQuestionAvailable() {
	questions, err := s.db.GetQuestions(s.ctx, false)
	s.Require().NoError(err)
	for _, q := range questions {
		s.Require().NoError(s.db.DeleteQuestion(s.ctx, q.ID))
	}

	w := s.do(http.MethodGet, "/api/questions/daily", nil, s.as(42))
	s.Equal(http.StatusNotFound, w.Code)
	s.Contains(w.Body.String(), "No question available")

	w = s.do(http.MethodGet, "/api/questions/simple", nil, s.as(42))
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestSubmitAnswer_UnknownQuestion() {
	w := s.do(http.MethodPost, "/api/answers", models.AnswerCreate{QuestionID: 99999, Answer: "x"}, s.as(42))
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestRatings() {
	body := models.SphereRatingsCreate{Ratings: []models.SphereRatingInput{{Sphere: "health", Rating: 12}}}
	w := s.do(http.MethodPost, "/api/spheres/ratings", body, s.as(42))
	s.Equal(http.StatusBadRequest, w.Code)

	body = models.SphereRatingsCreate{Ratings: []models.SphereRatingInput{{Sphere: "health", Rating: 6}, {Sphere: "career", Rating: 8}}}
	w = s.do(http.MethodPost, "/api/spheres/ratings", body, s.as(42))
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/spheres/ratings", nil, s.as(42))
	s.Require().Equal(http.StatusOK, w.Code)
	var ratings []models.SphereRating
	s.decode(w, &ratings)
	s.Len(ratings, 2)

	w = s.do(http.MethodGet, "/api/progress?days=30", nil, s.as(42))
	s.Require().Equal(http.StatusOK, w.Code)
	var p models.Progress
	s.decode(w, &p)
	s.Equal(30, p.PeriodDays)
	s.Equal(6, p.CurrentRatings["health"])
}

func (s *APITestSuite) TestSettings() {
	w := s.do(http.MethodGet, "/api/settings", nil, s.as(42))
	s.Require().Equal(http.StatusOK, w.Code)
	var settings models.Settings
	s.decode(w, &settings)
	s.Nil(settings.NotificationTime)
	s.Equal("ru", settings.Language)

	enabled := true
	w = s.do(http.MethodPut, "/api/settings", models.SettingsUpdate{AdminTestNotifications: &enabled}, s.as(42))
	s.Equal(http.StatusForbidden, w.Code)

	bad := "25:99"
	w = s.do(http.MethodPut, "/api/settings", models.SettingsUpdate{NotificationTime: &bad}, s.as(42))
	s.Equal(http.StatusBadRequest, w.Code)

	at := "08:30"
	w = s.do(http.MethodPut, "/api/settings", models.SettingsUpdate{NotificationTime: &at}, s.as(42))
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &settings)
	s.Require().NotNil(settings.NotificationTime)
	s.Equal("08:30", *settings.NotificationTime)

	w = s.do(http.MethodPut, "/api/settings", models.SettingsUpdate{AdminTestNotifications: &enabled}, s.as(adminTelegramID))
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &settings)
	s.True(settings.AdminTestNotifications)
}

func (s *APITestSuite) TestProfile() {
	date := "1990/01/01"
	w := s.do(http.MethodPut, "/api/users/me/profile", models.ProfileUpdate{BirthDate: &date}, s.as(42))
	s.Equal(http.StatusBadRequest, w.Code)

	date = "05.03.1990"
	name := "Anna"
	w = s.do(http.MethodPut, "/api/users/me/profile", models.ProfileUpdate{Name: &name, BirthDate: &date}, s.as(42))
	s.Require().Equal(http.StatusOK, w.Code)
	var user models.User
	s.decode(w, &user)
	s.Equal("Anna", user.Name)
	s.Require().NotNil(user.BirthDate)
	s.Equal("1990-03-05", *user.BirthDate)
}

func (s *APITestSuite) TestGuestTestDataAndOnboarding() {
	w := s.do(http.MethodPost, "/api/users/me/generate-test-data", nil, s.as(42))
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/users/me/generate-test-data", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/users/onboarding-status", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var status struct {
		Completed bool `json:"onboarding_completed"`
	}
	s.decode(w, &status)
	s.True(status.Completed)
}

func (s *APITestSuite) TestExportAndDelete() {
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/api/users/me", nil, s.as(42)).Code)

	w := s.do(http.MethodGet, "/api/users/me/export", nil, s.as(42))
	s.Require().Equal(http.StatusOK, w.Code)
	var export models.Export
	s.decode(w, &export)
	s.Equal(int64(42), export.User.TelegramID)
	s.Empty(export.Answers)

	w = s.do(http.MethodDelete, "/api/users/me", nil, s.as(42))
	s.Require().Equal(http.StatusOK, w.Code)

	_, err := s.db.GetUserByTelegramID(s.ctx, 42)
	s.ErrorIs(err, database.ErrNotFound)
}

func (s *APITestSuite) TestAdminRoutes() {
	w := s.do(http.MethodGet, "/api/questions/admin/all", nil, s.as(42))
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/questions/admin/all", nil, nil)
	s.Equal(http.StatusForbidden, w.Code, "guests are never admins")

	w = s.do(http.MethodGet, "/api/questions/admin/all", nil, s.as(adminTelegramID))
	s.Require().Equal(http.StatusOK, w.Code)
	var questions []models.Question
	s.decode(w, &questions)
	s.Len(questions, len(database.DefaultQuestions))
	s.NotNil(questions[0].IsActive)

	w = s.do(http.MethodPost, "/api/questions/admin", models.QuestionCreate{Sphere: "health", Text: "New?"}, s.as(adminTelegramID))
	s.Require().Equal(http.StatusOK, w.Code)
	var created models.Question
	s.decode(w, &created)
	s.Equal("text", created.Type)
	s.Require().NotNil(created.IsActive)
	s.True(*created.IsActive)

	inactive := false
	w = s.do(http.MethodPut, fmt.Sprintf("/api/questions/admin/%d", created.ID), models.QuestionUpdate{IsActive: &inactive}, s.as(adminTelegramID))
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/questions/admin/%d", created.ID), nil, s.as(adminTelegramID))
	s.Require().Equal(http.StatusOK, w.Code)
	w = s.do(http.MethodDelete, fmt.Sprintf("/api/questions/admin/%d", created.ID), nil, s.as(adminTelegramID))
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/admin/stats", nil, s.as(adminTelegramID))
	s.Require().Equal(http.StatusOK, w.Code)
	var stats database.Stats
	s.decode(w, &stats)
	s.Equal(int64(len(database.DefaultSpheres)), stats.Spheres)

	w = s.do(http.MethodGet, "/api/admin/reminders/due?at=7:00", nil, s.as(adminTelegramID))
	s.Equal(http.StatusBadRequest, w.Code)
	w = s.do(http.MethodGet, "/api/admin/reminders/due?at=07:00", nil, s.as(adminTelegramID))
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/admin/system", nil, s.as(adminTelegramID))
	s.Require().Equal(http.StatusOK, w.Code)
	var system models.SystemInfo
	s.decode(w, &system)
	s.Positive(system.Goroutines)
	s.Nil(system.DatabaseDisk, "no database config, no disk usage")

	w = s.do(http.MethodGet, "/api/admin/system", nil, s.as(42))
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *APITestSuite) TestAdminSpheres() {
	admin := s.as(adminTelegramID)
	w := s.do(http.MethodPost, "/api/spheres/admin", models.SphereCreate{Key: "hobby", Name: "Hobby"}, admin)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/spheres", nil, s.as(42))
	s.Require().Equal(http.StatusOK, w.Code)
	var spheres []models.Sphere
	s.decode(w, &spheres)
	s.Len(spheres, len(database.DefaultSpheres)+1)

	color := "#123456"
	w = s.do(http.MethodPut, "/api/spheres/admin/hobby", models.SphereUpdate{Color: &color}, admin)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodDelete, "/api/spheres/admin/hobby", nil, admin)
	s.Require().Equal(http.StatusOK, w.Code)
	w = s.do(http.MethodDelete, "/api/spheres/admin/hobby", nil, admin)
	s.Equal(http.StatusNotFound, w.Code)
}
