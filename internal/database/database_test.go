package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCreateUser_CreatesSettingsAndSubscription(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	user := &User{TelegramID: 42, FirstName: "Ann"}
	require.NoError(t, c.CreateUser(ctx, user))
	require.NotZero(t, user.ID)

	settings, err := c.GetOrCreateUserSettings(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ru", settings.Language)
	assert.Equal(t, ReportFrequencyWeekly, settings.ReminderFrequency)
	assert.Equal(t, ReportFrequencyWeekly, settings.WeeklyReportFrequency)
	assert.False(t, settings.IsPaused)

	sub, err := c.GetSubscription(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, SubscriptionPlanFree, sub.Plan)

	got, err := c.GetUserByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = c.GetUserByTelegramID(ctx, 43)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetLatestGuestByIP(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	first := &User{TelegramID: -1, GuestIP: "10.0.0.1"}
	second := &User{TelegramID: -2, GuestIP: "10.0.0.1"}
	other := &User{TelegramID: -3, GuestIP: "10.0.0.2"}
	for _, u := range []*User{first, second, other} {
		require.NoError(t, c.CreateUser(ctx, u))
	}

	got, err := c.GetLatestGuestByIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = c.GetLatestGuestByIP(ctx, "10.0.0.9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetUserByGuestToken(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	guest := &User{TelegramID: -1, GuestIP: "10.0.0.1", GuestToken: lo.ToPtr("b1f9a6d2-token")}
	registered := &User{TelegramID: 42}
	require.NoError(t, c.CreateUser(ctx, guest))
	require.NoError(t, c.CreateUser(ctx, registered))

	got, err := c.GetUserByGuestToken(ctx, "b1f9a6d2-token")
	require.NoError(t, err)
	assert.Equal(t, guest.ID, got.ID)
	assert.True(t, got.IsGuest())

	_, err = c.GetUserByGuestToken(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUser_Cascades(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	require.NoError(t, c.SeedCatalog(ctx))

	user := &User{TelegramID: 7}
	require.NoError(t, c.CreateUser(ctx, user))
	keep := &User{TelegramID: 8}
	require.NoError(t, c.CreateUser(ctx, keep))

	now := time.Now()
	for _, id := range []uint{user.ID, keep.ID} {
		require.NoError(t, c.CreateSphereRatings(ctx, []SphereRating{{UserID: id, Sphere: "health", Rating: 5, Date: now}}))
		require.NoError(t, c.CreateAnswer(ctx, &Answer{UserID: id, QuestionID: 1, Answer: "fine", Date: now}))
		_, err := c.ReplaceFocusSpheres(ctx, id, []string{"health"}, now)
		require.NoError(t, err)
	}

	require.NoError(t, c.DeleteUser(ctx, user.ID))
	assert.ErrorIs(t, c.DeleteUser(ctx, user.ID), ErrNotFound)

	_, err := c.GetUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	ratings, err := c.GetSphereRatings(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, ratings)
	answers, err := c.GetAnswers(ctx, user.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, answers)
	focus, err := c.GetFocusSpheres(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, focus)
	_, err = c.GetSubscription(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	ratings, err = c.GetSphereRatings(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, ratings, 1)
}

func TestReplaceFocusSpheres(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	first := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err := c.ReplaceFocusSpheres(ctx, 1, []string{"health", "money"}, first)
	require.NoError(t, err)

	second := first.Add(48 * time.Hour)
	created, err := c.ReplaceFocusSpheres(ctx, 1, []string{"career", "energy"}, second)
	require.NoError(t, err)
	require.Len(t, created, 2)

	focus, err := c.GetFocusSpheres(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"career", "energy"}, lo.Map(focus, func(f FocusSphere, _ int) string { return f.Sphere }))
	for _, f := range focus {
		assert.True(t, f.SelectedAt.Equal(second))
	}
}

func TestGetLatestSphereRatings(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	day := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, c.CreateSphereRatings(ctx, []SphereRating{
		{UserID: 1, Sphere: "health", Rating: 3, Date: day},
		{UserID: 1, Sphere: "health", Rating: 6, Date: day.Add(time.Hour)},
		{UserID: 1, Sphere: "money", Rating: 4, Date: day},
		// same date as the previous money rating, the higher id wins
		{UserID: 1, Sphere: "money", Rating: 9, Date: day},
		{UserID: 2, Sphere: "health", Rating: 1, Date: day.Add(2 * time.Hour)},
	}))

	latest, err := c.GetLatestSphereRatings(ctx, 1)
	require.NoError(t, err)
	byKey := lo.SliceToMap(latest, func(r SphereRating) (string, int) { return r.Sphere, r.Rating })
	assert.Equal(t, map[string]int{"health": 6, "money": 9}, byKey)
}

func TestAnswerQueries(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	base := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	for i, qid := range []uint{1, 2, 2, 3} {
		require.NoError(t, c.CreateAnswer(ctx, &Answer{
			UserID:     1,
			QuestionID: qid,
			Answer:     "a",
			Date:       base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}

	since := base.Add(24 * time.Hour)
	ids, err := c.GetAnsweredQuestionIDs(ctx, 1, since)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{2, 3}, ids)

	count, err := c.CountAnswersSince(ctx, 1, since)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	answered, err := c.HasAnsweredSince(ctx, 1, base.Add(10*24*time.Hour))
	require.NoError(t, err)
	assert.False(t, answered)

	last, err := c.GetLastAnswerTime(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(base.Add(3*24*time.Hour)))

	last, err = c.GetLastAnswerTime(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestSeedCatalog_Idempotent(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.SeedCatalog(ctx))
	require.NoError(t, c.SeedCatalog(ctx))

	spheres, err := c.GetSpheres(ctx)
	require.NoError(t, err)
	assert.Len(t, spheres, len(DefaultSpheres))

	questions, err := c.GetQuestions(ctx, true)
	require.NoError(t, err)
	assert.Len(t, questions, len(DefaultQuestions))

	health, err := c.GetActiveQuestionsBySphere(ctx, "health")
	require.NoError(t, err)
	assert.Len(t, health, 4)
}

func TestQuestionCRUD(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	q := &Question{Sphere: "health", Text: "How are you?", Type: QuestionTypeShortAnswer, IsActive: false}
	require.NoError(t, c.CreateQuestion(ctx, q))

	active, err := c.GetActiveQuestionsBySphere(ctx, "health")
	require.NoError(t, err)
	assert.Empty(t, active)

	updated, err := c.UpdateQuestion(ctx, q.ID, QuestionUpdate{IsActive: lo.ToPtr(true), Text: lo.ToPtr("How are you today?")})
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
	assert.Equal(t, "How are you today?", updated.Text)

	require.NoError(t, c.DeleteQuestion(ctx, q.ID))
	assert.ErrorIs(t, c.DeleteQuestion(ctx, q.ID), ErrNotFound)
	_, err = c.GetQuestionByID(ctx, q.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSphere_Cascades(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	require.NoError(t, c.SeedCatalog(ctx))

	now := time.Now()
	require.NoError(t, c.CreateSphereRatings(ctx, []SphereRating{
		{UserID: 1, Sphere: "money", Rating: 5, Date: now},
		{UserID: 1, Sphere: "health", Rating: 5, Date: now},
	}))
	_, err := c.ReplaceFocusSpheres(ctx, 1, []string{"money", "health"}, now)
	require.NoError(t, err)

	require.NoError(t, c.DeleteSphere(ctx, "money"))
	assert.ErrorIs(t, c.DeleteSphere(ctx, "money"), ErrNotFound)

	questions, err := c.GetActiveQuestionsBySphere(ctx, "money")
	require.NoError(t, err)
	assert.Empty(t, questions)

	ratings, err := c.GetSphereRatings(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, "health", ratings[0].Sphere)

	focus, err := c.GetFocusSpheres(ctx, 1)
	require.NoError(t, err)
	require.Len(t, focus, 1)
	assert.Equal(t, "health", focus[0].Sphere)
}

func TestSettingsAndSubscription(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	settings, err := c.GetOrCreateUserSettings(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, settings.NotificationTime)

	updated, err := c.UpdateUserSettings(ctx, 5, SettingsUpdate{
		NotificationTime: lo.ToPtr("09:30"),
		IsPaused:         lo.ToPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "09:30", updated.NotificationTime)
	assert.True(t, updated.IsPaused)
	assert.Equal(t, "ru", updated.Language)

	updated, err = c.UpdateUserSettings(ctx, 5, SettingsUpdate{IsPaused: lo.ToPtr(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsPaused)
	assert.Equal(t, "09:30", updated.NotificationTime)

	expires := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sub, err := c.UpdateSubscription(ctx, 5, SubscriptionPlanPremium, &expires)
	require.NoError(t, err)
	assert.Equal(t, SubscriptionPlanPremium, sub.Plan)
	require.NotNil(t, sub.ExpiresAt)
}

func TestGetNotifiableUsers(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	registered := &User{TelegramID: 100}
	guest := &User{TelegramID: -100}
	require.NoError(t, c.CreateUser(ctx, registered))
	require.NoError(t, c.CreateUser(ctx, guest))

	users, err := c.GetNotifiableUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, registered.ID, users[0].ID)
	require.NotNil(t, users[0].Settings)
	assert.Equal(t, "ru", users[0].Settings.Language)

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Users)
	assert.EqualValues(t, 1, stats.Guests)
}
