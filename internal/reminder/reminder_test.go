package reminder

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antichaos/antichaos/internal/cache"
	"github.com/antichaos/antichaos/internal/config"
	"github.com/antichaos/antichaos/internal/database"
	dbmock "github.com/antichaos/antichaos/internal/database/mock"
	"github.com/antichaos/antichaos/internal/identity"
	"github.com/antichaos/antichaos/internal/notify/telegram"
	"github.com/antichaos/antichaos/internal/question"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeDeliverer struct {
	mu      sync.Mutex
	sent    []telegram.OutgoingMessage
	failFor map[int64]error
}

func (f *fakeDeliverer) SendMessage(ctx context.Context, msg telegram.OutgoingMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[msg.ChatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeDeliverer) chats() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lo.Map(f.sent, func(m telegram.OutgoingMessage, _ int) int64 { return m.ChatID })
}

type fakeAlerter struct {
	failed, total int
	errs          []string
	calls         int
}

func (f *fakeAlerter) SendReminderFailures(ctx context.Context, failed, total int, errs []string) error {
	f.calls++
	f.failed, f.total, f.errs = failed, total, errs
	return nil
}

const adminTelegramID = 1000

type ReminderTestSuite struct {
	suite.Suite
	ctx       context.Context
	db        *dbmock.MockDB
	deliverer *fakeDeliverer
	alerter   *fakeAlerter
	service   *Service
	now       time.Time
	question  uint
}

func TestReminderTestSuite(t *testing.T) {
	suite.Run(t, new(ReminderTestSuite))
}

func (s *ReminderTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = dbmock.NewMockDB()
	s.deliverer = &fakeDeliverer{failFor: map[int64]error{}}
	s.alerter = &fakeAlerter{}
	s.now = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)

	s.Require().NoError(s.db.CreateSphere(s.ctx, &database.Sphere{Key: "health"}))
	q := &database.Question{Sphere: "health", Text: "How are you?", IsActive: true}
	s.Require().NoError(s.db.CreateQuestion(s.ctx, q))
	s.question = q.ID

	c, err := cache.New(&config.CacheConfig{Type: config.CacheTypeMemory})
	s.Require().NoError(err)

	selector := question.NewSelector(s.db, time.UTC,
		question.WithRand(rand.New(rand.NewPCG(1, 1))),
		question.WithClock(func() time.Time { return s.now }),
	)
	s.service = New(s.db, selector, s.deliverer, Options{
		FrontendURL: "https://app.example",
		Admins:      identity.NewAdminSet([]int64{adminTelegramID}),
		Sent:        cache.NewPrefixedCache[time.Time](c, SentCachePrefix),
		Alerter:     s.alerter,
		Now:         func() time.Time { return s.now },
	})
}

func (s *ReminderTestSuite) user(telegramID int64, update database.SettingsUpdate) *database.User {
	u := &database.User{TelegramID: telegramID, FirstName: "User"}
	s.Require().NoError(s.db.CreateUser(s.ctx, u))
	_, err := s.db.UpdateUserSettings(s.ctx, u.ID, update)
	s.Require().NoError(err)
	return u
}

func (s *ReminderTestSuite) dueIDs(now time.Time) []int64 {
	due, err := s.service.CollectDueUsers(s.ctx, now)
	s.Require().NoError(err)
	return lo.Map(due, func(d Due, _ int) int64 { return d.User.TelegramID })
}

func (s *ReminderTestSuite) TestCollectDueUsers_NotificationTime() {
	u := s.user(1, database.SettingsUpdate{NotificationTime: lo.ToPtr("09:00")})

	s.Equal([]int64{1}, s.dueIDs(s.now))
	s.Empty(s.dueIDs(s.now.Add(time.Minute)))
	s.Empty(s.dueIDs(s.now.Add(-time.Minute)))
	s.Empty(s.dueIDs(s.now.Add(24*time.Hour+time.Minute)))

	// answered today, no reminder
	s.Require().NoError(s.db.CreateAnswer(s.ctx, &database.Answer{UserID: u.ID, QuestionID: s.question, Answer: "x", Date: s.now.Add(-time.Hour)}))
	s.Empty(s.dueIDs(s.now))

	// an answer from yesterday does not count
	s.Equal([]int64{1}, s.dueIDs(s.now.Add(24*time.Hour)))
}

func (s *ReminderTestSuite) TestCollectDueUsers_AdminTestMode() {
	admin := s.user(adminTelegramID, database.SettingsUpdate{
		NotificationTime:       lo.ToPtr("18:30"),
		AdminTestNotifications: lo.ToPtr(true),
	})
	s.Require().NoError(s.db.CreateAnswer(s.ctx, &database.Answer{UserID: admin.ID, QuestionID: s.question, Answer: "x", Date: s.now}))

	for _, offset := range []time.Duration{0, time.Minute, 7 * time.Hour, 30 * time.Hour} {
		due, err := s.service.CollectDueUsers(s.ctx, s.now.Add(offset))
		s.Require().NoError(err)
		s.Require().Len(due, 1)
		s.True(due[0].IsTest)
	}
}

func (s *ReminderTestSuite) TestCollectDueUsers_TestModeIgnoredForNonAdmins() {
	s.user(2, database.SettingsUpdate{
		NotificationTime:       lo.ToPtr("18:30"),
		AdminTestNotifications: lo.ToPtr(true),
	})
	s.Empty(s.dueIDs(s.now))
}

func (s *ReminderTestSuite) TestCollectDueUsers_Skips() {
	s.user(3, database.SettingsUpdate{NotificationTime: lo.ToPtr("09:00"), IsPaused: lo.ToPtr(true)})
	s.user(adminTelegramID, database.SettingsUpdate{AdminTestNotifications: lo.ToPtr(true), IsPaused: lo.ToPtr(true)})
	s.user(4, database.SettingsUpdate{NotificationTime: lo.ToPtr("9:00")})
	s.user(5, database.SettingsUpdate{NotificationTime: lo.ToPtr("garbage")})
	s.user(6, database.SettingsUpdate{})
	s.user(-7, database.SettingsUpdate{NotificationTime: lo.ToPtr("09:00")})
	noSettings := s.user(8, database.SettingsUpdate{NotificationTime: lo.ToPtr("09:00")})
	s.db.DeleteUserSettings(noSettings.ID)

	s.Empty(s.dueIDs(s.now))
}

func (s *ReminderTestSuite) TestCollectDueUsers_Timezone() {
	loc := time.FixedZone("UTC+3", 3*60*60)
	s.service.opts.Location = loc
	s.user(1, database.SettingsUpdate{NotificationTime: lo.ToPtr("12:00")})

	// 09:00 UTC is 12:00 local
	s.Equal([]int64{1}, s.dueIDs(s.now))
}

func (s *ReminderTestSuite) TestCollectDueUsers_AttachesQuestion() {
	s.user(1, database.SettingsUpdate{NotificationTime: lo.ToPtr("09:00")})

	due, err := s.service.CollectDueUsers(s.ctx, s.now)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Require().NotNil(due[0].QuestionID)
	s.Equal(s.question, *due[0].QuestionID)

	// without any question the reminder is still due, just without a deep link
	s.Require().NoError(s.db.DeleteQuestion(s.ctx, s.question))
	due, err = s.service.CollectDueUsers(s.ctx, s.now)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Nil(due[0].QuestionID)
}

func (s *ReminderTestSuite) TestCollectDueUsers_StoreError() {
	boom := errors.New("boom")
	s.db.GetNotifiableUsersError = boom
	_, err := s.service.CollectDueUsers(s.ctx, s.now)
	s.ErrorIs(err, boom)
}

func (s *ReminderTestSuite) TestStateMachine() {
	s.False(s.service.Running())
	s.ErrorIs(s.service.Stop(), ErrNotRunning)

	s.user(1, database.SettingsUpdate{NotificationTime: lo.ToPtr("09:00")})

	result, err := s.service.Tick(s.ctx)
	s.Require().NoError(err)
	s.Zero(result.Due, "stopped service does not scan")
	s.Empty(s.deliverer.chats())

	s.Require().NoError(s.service.Start())
	s.ErrorIs(s.service.Start(), ErrAlreadyRunning)

	result, err = s.service.Tick(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Sent)

	s.Require().NoError(s.service.Stop())
	s.False(s.service.Running())
}

func (s *ReminderTestSuite) TestTick_FailureIsolation() {
	s.Require().NoError(s.service.Start())
	s.user(1, database.SettingsUpdate{NotificationTime: lo.ToPtr("09:00")})
	s.user(2, database.SettingsUpdate{NotificationTime: lo.ToPtr("09:00")})
	s.user(3, database.SettingsUpdate{NotificationTime: lo.ToPtr("09:00")})
	s.deliverer.failFor[2] = errors.New("blocked by user")

	result, err := s.service.Tick(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, result.Due)
	s.Equal(2, result.Sent)
	s.Equal(1, result.Failed)
	s.Equal([]int64{1, 3}, s.deliverer.chats())

	s.Equal(1, s.alerter.calls)
	s.Equal(1, s.alerter.failed)
	s.Equal(3, s.alerter.total)
	s.Require().Len(s.alerter.errs, 1)
	s.Contains(s.alerter.errs[0], "blocked by user")
}

func (s *ReminderTestSuite) TestTick_NoDuplicateWithinMinute() {
	s.Require().NoError(s.service.Start())
	s.user(adminTelegramID, database.SettingsUpdate{AdminTestNotifications: lo.ToPtr(true)})

	first, err := s.service.Tick(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, first.Sent)

	s.now = s.now.Add(30 * time.Second)
	second, err := s.service.Tick(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, second.Sent)
	s.Equal(1, second.Skipped)

	s.now = s.now.Add(time.Minute)
	third, err := s.service.Tick(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, third.Sent)
	s.Len(s.deliverer.chats(), 2)
	s.Zero(s.alerter.calls)
}

func (s *ReminderTestSuite) TestTick_SpacingAndCancellation() {
	s.service.opts.SendSpacing = time.Hour
	s.Require().NoError(s.service.Start())
	s.user(1, database.SettingsUpdate{NotificationTime: lo.ToPtr("09:00")})
	s.user(2, database.SettingsUpdate{NotificationTime: lo.ToPtr("09:00")})

	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()

	result, err := s.service.Tick(ctx)
	s.Require().NoError(err)
	s.Equal(2, result.Due)
	s.Equal(1, result.Sent)
	s.Equal([]int64{1}, s.deliverer.chats())
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)
	qid := uint(12)
	last := now.Add(-72 * time.Hour)

	msg := BuildMessage("https://app.example", Due{
		User:       database.User{TelegramID: 5, FirstName: "<Ann>"},
		QuestionID: &qid,
		IsTest:     true,
	}, &last, now)

	assert.EqualValues(t, 5, msg.ChatID)
	assert.Equal(t, telegram.ParseModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "Hi, &lt;Ann&gt;!")
	assert.Contains(t, msg.Text, "[TEST MODE]")
	assert.Contains(t, msg.Text, `href="https://app.example/answer/12"`)
	assert.Contains(t, msg.Text, "Your last answer was 3 days ago.")
	require.NotNil(t, msg.ReplyMarkup)
	assert.Equal(t, "https://app.example/daily", msg.ReplyMarkup.InlineKeyboard[0][0].WebApp.URL)

	msg = BuildMessage("https://app.example", Due{User: database.User{TelegramID: 5}}, nil, now)
	assert.Contains(t, msg.Text, "Hi, friend!")
	assert.Contains(t, msg.Text, `href="https://app.example/daily"`)
	assert.False(t, strings.Contains(msg.Text, "TEST MODE"))
	assert.False(t, strings.Contains(msg.Text, "last answer"))
}

func TestParseNotificationTime(t *testing.T) {
	tests := []struct {
		value   string
		hour    int
		minute  int
		wantErr bool
	}{
		{value: "09:00", hour: 9},
		{value: "23:59", hour: 23, minute: 59},
		{value: "00:00"},
		{value: "9:00", wantErr: true},
		{value: "24:00", wantErr: true},
		{value: "12:60", wantErr: true},
		{value: "noon", wantErr: true},
		{value: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			h, m, err := ParseNotificationTime(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, h)
			assert.Equal(t, tt.minute, m)
		})
	}
}

type erroringAlerter struct{}

func (erroringAlerter) SendReminderFailures(context.Context, int, int, []string) error {
	return errors.New("smtp down")
}

func TestAlerters_ReportsToAll(t *testing.T) {
	first, second := &fakeAlerter{}, &fakeAlerter{}
	alerters := Alerters{first, erroringAlerter{}, second}

	err := alerters.SendReminderFailures(context.Background(), 1, 4, []string{"user 7: blocked"})
	assert.ErrorContains(t, err, "smtp down")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 4, second.total)
}

func (s *ReminderTestSuite) TestTick_SkippedUsersDoNotWaitForSpacing() {
	s.Require().NoError(s.service.Start())
	s.user(1, database.SettingsUpdate{NotificationTime: lo.ToPtr("09:00")})
	s.user(2, database.SettingsUpdate{NotificationTime: lo.ToPtr("09:00")})

	first, err := s.service.Tick(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, first.Sent)

	s.service.opts.SendSpacing = time.Hour
	ctx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()

	start := time.Now()
	second, err := s.service.Tick(ctx)
	s.Require().NoError(err)
	s.Equal(2, second.Due)
	s.Equal(2, second.Skipped)
	s.Zero(second.Sent)
	s.Less(time.Since(start), time.Second)
	s.Len(s.deliverer.chats(), 2)
}
