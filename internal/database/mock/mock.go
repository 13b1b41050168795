package mock

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/antichaos/antichaos/internal/database"
	"github.com/samber/lo"
)

var _ database.DB = (*MockDB)(nil)

// MockDB is a mock implementation of database.DB for testing.
type MockDB struct {
	mu sync.RWMutex

	users         map[uint]*database.User
	settings      map[uint]*database.UserSettings
	subscriptions map[uint]*database.Subscription
	spheres       map[string]*database.Sphere
	questions     map[uint]*database.Question
	ratings       []database.SphereRating
	focus         []database.FocusSphere
	answers       []database.Answer

	nextID uint

	// Error simulation
	CreateUserError             error
	GetUserByIDError            error
	GetNotifiableUsersError     error
	GetSpheresError             error
	CreateSphereRatingsError    error
	GetSphereRatingsError       error
	GetFocusSpheresError        error
	ReplaceFocusSpheresError    error
	GetActiveQuestionsError     error
	CreateAnswerError           error
	GetAnswersError             error
	GetAnsweredQuestionIDsError error
	HasAnsweredSinceError       error
	GetOrCreateSettingsError    error
	UpdateSettingsError         error
	DeleteUserError             error
}

// NewMockDB creates a new MockDB instance.
func NewMockDB() *MockDB {
	m := &MockDB{}
	m.Reset()
	return m
}

// Reset clears all data and errors from the mock database.
func (m *MockDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users = make(map[uint]*database.User)
	m.settings = make(map[uint]*database.UserSettings)
	m.subscriptions = make(map[uint]*database.Subscription)
	m.spheres = make(map[string]*database.Sphere)
	m.questions = make(map[uint]*database.Question)
	m.ratings = nil
	m.focus = nil
	m.answers = nil
	m.nextID = 1

	m.CreateUserError = nil
	m.GetUserByIDError = nil
	m.GetNotifiableUsersError = nil
	m.GetSpheresError = nil
	m.CreateSphereRatingsError = nil
	m.GetSphereRatingsError = nil
	m.GetFocusSpheresError = nil
	m.ReplaceFocusSpheresError = nil
	m.GetActiveQuestionsError = nil
	m.CreateAnswerError = nil
	m.GetAnswersError = nil
	m.GetAnsweredQuestionIDsError = nil
	m.HasAnsweredSinceError = nil
	m.GetOrCreateSettingsError = nil
	m.UpdateSettingsError = nil
	m.DeleteUserError = nil
}

// id hands out ids from a single sequence; callers must hold the write lock.
func (m *MockDB) id() uint {
	id := m.nextID
	m.nextID++
	return id
}

// User operations

func (m *MockDB) CreateUser(ctx context.Context, user *database.User) error {
	if m.CreateUserError != nil {
		return m.CreateUserError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user.ID = m.id()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	settings := database.DefaultUserSettings(user.ID)
	settings.ID = m.id()
	subscription := &database.Subscription{UserID: user.ID, Plan: database.SubscriptionPlanFree}
	subscription.ID = m.id()

	stored := *user
	stored.Settings = nil
	stored.Subscription = nil
	m.users[user.ID] = &stored
	m.settings[user.ID] = settings
	m.subscriptions[user.ID] = subscription

	user.Settings = settings
	user.Subscription = subscription
	return nil
}

func (m *MockDB) GetUserByID(ctx context.Context, id uint) (*database.User, error) {
	if m.GetUserByIDError != nil {
		return nil, m.GetUserByIDError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	u := *user
	return &u, nil
}

func (m *MockDB) GetUserByTelegramID(ctx context.Context, telegramID int64) (*database.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.TelegramID == telegramID {
			u := *user
			return &u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *MockDB) GetUserByGuestToken(ctx context.Context, token string) (*database.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.GuestToken != nil && *user.GuestToken == token {
			u := *user
			return &u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *MockDB) GetLatestGuestByIP(ctx context.Context, ip string) (*database.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *database.User
	for _, user := range m.users {
		if user.TelegramID >= 0 || user.GuestIP != ip {
			continue
		}
		if latest == nil ||
			user.CreatedAt.After(latest.CreatedAt) ||
			(user.CreatedAt.Equal(latest.CreatedAt) && user.ID > latest.ID) {
			latest = user
		}
	}
	if latest == nil {
		return nil, database.ErrNotFound
	}
	u := *latest
	return &u, nil
}

func (m *MockDB) UpdateUserProfile(ctx context.Context, id uint, update database.ProfileUpdate) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Gender != nil {
		user.Gender = *update.Gender
	}
	if update.BirthDate != nil {
		bd := update.BirthDate.UTC()
		user.BirthDate = &bd
	}
	u := *user
	return &u, nil
}

func (m *MockDB) DeleteUser(ctx context.Context, id uint) error {
	if m.DeleteUserError != nil {
		return m.DeleteUserError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.users, id)
	delete(m.settings, id)
	delete(m.subscriptions, id)
	m.ratings = lo.Reject(m.ratings, func(r database.SphereRating, _ int) bool { return r.UserID == id })
	m.focus = lo.Reject(m.focus, func(f database.FocusSphere, _ int) bool { return f.UserID == id })
	m.answers = lo.Reject(m.answers, func(a database.Answer, _ int) bool { return a.UserID == id })
	return nil
}

func (m *MockDB) GetNotifiableUsers(ctx context.Context) ([]database.User, error) {
	if m.GetNotifiableUsersError != nil {
		return nil, m.GetNotifiableUsersError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]database.User, 0)
	for _, user := range m.users {
		settings, ok := m.settings[user.ID]
		if user.TelegramID <= 0 || !ok {
			continue
		}
		u := *user
		s := *settings
		u.Settings = &s
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b database.User) int { return cmp.Compare(a.ID, b.ID) })
	return users, nil
}

// Sphere operations

func (m *MockDB) GetSpheres(ctx context.Context) ([]database.Sphere, error) {
	if m.GetSpheresError != nil {
		return nil, m.GetSpheresError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	spheres := make([]database.Sphere, 0, len(m.spheres))
	for _, s := range m.spheres {
		spheres = append(spheres, *s)
	}
	slices.SortFunc(spheres, func(a, b database.Sphere) int { return cmp.Compare(a.ID, b.ID) })
	return spheres, nil
}

func (m *MockDB) GetSphere(ctx context.Context, key string) (*database.Sphere, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sphere, ok := m.spheres[key]
	if !ok {
		return nil, database.ErrNotFound
	}
	s := *sphere
	return &s, nil
}

func (m *MockDB) CreateSphere(ctx context.Context, sphere *database.Sphere) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sphere.ID = m.id()
	s := *sphere
	m.spheres[sphere.Key] = &s
	return nil
}

func (m *MockDB) UpdateSphere(ctx context.Context, key string, update database.SphereUpdate) (*database.Sphere, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sphere, ok := m.spheres[key]
	if !ok {
		return nil, database.ErrNotFound
	}
	if update.Name != nil {
		sphere.Name = *update.Name
	}
	if update.Color != nil {
		sphere.Color = *update.Color
	}
	s := *sphere
	return &s, nil
}

func (m *MockDB) DeleteSphere(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.spheres[key]; !ok {
		return database.ErrNotFound
	}
	delete(m.spheres, key)
	m.ratings = lo.Reject(m.ratings, func(r database.SphereRating, _ int) bool { return r.Sphere == key })
	m.focus = lo.Reject(m.focus, func(f database.FocusSphere, _ int) bool { return f.Sphere == key })
	for id, q := range m.questions {
		if q.Sphere == key {
			delete(m.questions, id)
		}
	}
	return nil
}

// Sphere rating operations

func (m *MockDB) CreateSphereRatings(ctx context.Context, ratings []database.SphereRating) error {
	if m.CreateSphereRatingsError != nil {
		return m.CreateSphereRatingsError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range ratings {
		ratings[i].ID = m.id()
		ratings[i].Date = ratings[i].Date.UTC()
		m.ratings = append(m.ratings, ratings[i])
	}
	return nil
}

func (m *MockDB) GetSphereRatings(ctx context.Context, userID uint) ([]database.SphereRating, error) {
	if m.GetSphereRatingsError != nil {
		return nil, m.GetSphereRatingsError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ratings := lo.Filter(m.ratings, func(r database.SphereRating, _ int) bool { return r.UserID == userID })
	slices.SortFunc(ratings, func(a, b database.SphereRating) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return ratings, nil
}

func (m *MockDB) GetLatestSphereRatings(ctx context.Context, userID uint) ([]database.SphereRating, error) {
	ratings, err := m.GetSphereRatings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return database.LatestPerSphere(ratings), nil
}

// Focus sphere operations

func (m *MockDB) GetFocusSpheres(ctx context.Context, userID uint) ([]database.FocusSphere, error) {
	if m.GetFocusSpheresError != nil {
		return nil, m.GetFocusSpheresError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return lo.Filter(m.focus, func(f database.FocusSphere, _ int) bool { return f.UserID == userID }), nil
}

func (m *MockDB) ReplaceFocusSpheres(ctx context.Context, userID uint, spheres []string, selectedAt time.Time) ([]database.FocusSphere, error) {
	if m.ReplaceFocusSpheresError != nil {
		return nil, m.ReplaceFocusSpheresError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.focus = lo.Reject(m.focus, func(f database.FocusSphere, _ int) bool { return f.UserID == userID })
	created := make([]database.FocusSphere, 0, len(spheres))
	for _, s := range spheres {
		f := database.FocusSphere{ID: m.id(), UserID: userID, Sphere: s, SelectedAt: selectedAt.UTC()}
		m.focus = append(m.focus, f)
		created = append(created, f)
	}
	return created, nil
}

// AddFocusSphere appends a single focus sphere with its own selection time.
// Used by tests that need focus sets with diverging SelectedAt values.
func (m *MockDB) AddFocusSphere(userID uint, sphere string, selectedAt time.Time) database.FocusSphere {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := database.FocusSphere{ID: m.id(), UserID: userID, Sphere: sphere, SelectedAt: selectedAt.UTC()}
	m.focus = append(m.focus, f)
	return f
}

// Question operations

func (m *MockDB) GetQuestionByID(ctx context.Context, id uint) (*database.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	question, ok := m.questions[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	q := *question
	return &q, nil
}

func (m *MockDB) GetQuestions(ctx context.Context, activeOnly bool) ([]database.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	questions := make([]database.Question, 0, len(m.questions))
	for _, q := range m.questions {
		if activeOnly && !q.IsActive {
			continue
		}
		questions = append(questions, *q)
	}
	slices.SortFunc(questions, func(a, b database.Question) int { return cmp.Compare(a.ID, b.ID) })
	return questions, nil
}

func (m *MockDB) GetActiveQuestionsBySphere(ctx context.Context, sphere string) ([]database.Question, error) {
	if m.GetActiveQuestionsError != nil {
		return nil, m.GetActiveQuestionsError
	}

	questions, err := m.GetQuestions(ctx, true)
	if err != nil {
		return nil, err
	}
	return lo.Filter(questions, func(q database.Question, _ int) bool { return q.Sphere == sphere }), nil
}

func (m *MockDB) CreateQuestion(ctx context.Context, question *database.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	question.ID = m.id()
	if question.Type == "" {
		question.Type = database.QuestionTypeText
	}
	q := *question
	m.questions[question.ID] = &q
	return nil
}

func (m *MockDB) UpdateQuestion(ctx context.Context, id uint, update database.QuestionUpdate) (*database.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	question, ok := m.questions[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if update.Sphere != nil {
		question.Sphere = *update.Sphere
	}
	if update.Text != nil {
		question.Text = *update.Text
	}
	if update.Type != nil {
		question.Type = *update.Type
	}
	if update.IsActive != nil {
		question.IsActive = *update.IsActive
	}
	q := *question
	return &q, nil
}

func (m *MockDB) DeleteQuestion(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.questions[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.questions, id)
	return nil
}

// Answer operations

func (m *MockDB) CreateAnswer(ctx context.Context, answer *database.Answer) error {
	if m.CreateAnswerError != nil {
		return m.CreateAnswerError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	answer.ID = m.id()
	answer.Date = answer.Date.UTC()
	m.answers = append(m.answers, *answer)
	return nil
}

func (m *MockDB) GetAnswers(ctx context.Context, userID uint, since *time.Time) ([]database.Answer, error) {
	if m.GetAnswersError != nil {
		return nil, m.GetAnswersError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	answers := lo.Filter(m.answers, func(a database.Answer, _ int) bool {
		return a.UserID == userID && (since == nil || !a.Date.Before(*since))
	})
	slices.SortFunc(answers, func(a, b database.Answer) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return answers, nil
}

func (m *MockDB) GetAnsweredQuestionIDs(ctx context.Context, userID uint, since time.Time) ([]uint, error) {
	if m.GetAnsweredQuestionIDsError != nil {
		return nil, m.GetAnsweredQuestionIDsError
	}

	answers, err := m.GetAnswers(ctx, userID, &since)
	if err != nil {
		return nil, err
	}
	return lo.Uniq(lo.Map(answers, func(a database.Answer, _ int) uint { return a.QuestionID })), nil
}

func (m *MockDB) HasAnsweredSince(ctx context.Context, userID uint, since time.Time) (bool, error) {
	if m.HasAnsweredSinceError != nil {
		return false, m.HasAnsweredSinceError
	}

	count, err := m.CountAnswersSince(ctx, userID, since)
	return count > 0, err
}

func (m *MockDB) CountAnswersSince(ctx context.Context, userID uint, since time.Time) (int64, error) {
	answers, err := m.GetAnswers(ctx, userID, &since)
	if err != nil {
		return 0, err
	}
	return int64(len(answers)), nil
}

func (m *MockDB) GetLastAnswerTime(ctx context.Context, userID uint) (*time.Time, error) {
	answers, err := m.GetAnswers(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, nil
	}
	return &answers[0].Date, nil
}

// Settings and subscription operations

func (m *MockDB) GetOrCreateUserSettings(ctx context.Context, userID uint) (*database.UserSettings, error) {
	if m.GetOrCreateSettingsError != nil {
		return nil, m.GetOrCreateSettingsError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	settings, ok := m.settings[userID]
	if !ok {
		settings = database.DefaultUserSettings(userID)
		settings.ID = m.id()
		m.settings[userID] = settings
	}
	s := *settings
	return &s, nil
}

// DeleteUserSettings removes the settings row of a user, leaving the user in place.
func (m *MockDB) DeleteUserSettings(userID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.settings, userID)
}

func (m *MockDB) UpdateUserSettings(ctx context.Context, userID uint, update database.SettingsUpdate) (*database.UserSettings, error) {
	if m.UpdateSettingsError != nil {
		return nil, m.UpdateSettingsError
	}
	if _, err := m.GetOrCreateUserSettings(ctx, userID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	settings := m.settings[userID]
	update.Apply(settings)
	s := *settings
	return &s, nil
}

func (m *MockDB) GetSubscription(ctx context.Context, userID uint) (*database.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subscription, ok := m.subscriptions[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	s := *subscription
	return &s, nil
}

func (m *MockDB) UpdateSubscription(ctx context.Context, userID uint, plan database.SubscriptionPlan, expiresAt *time.Time) (*database.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subscription, ok := m.subscriptions[userID]
	if !ok {
		subscription = &database.Subscription{UserID: userID}
		subscription.ID = m.id()
		m.subscriptions[userID] = subscription
	}
	subscription.Plan = plan
	if expiresAt != nil {
		subscription.ExpiresAt = expiresAt
	}
	s := *subscription
	return &s, nil
}

// Maintenance

func (m *MockDB) SeedCatalog(ctx context.Context) error {
	m.mu.RLock()
	questionCount := len(m.questions)
	m.mu.RUnlock()

	for _, s := range database.DefaultSpheres {
		if _, err := m.GetSphere(ctx, s.Key); err == nil {
			continue
		}
		sphere := s
		if err := m.CreateSphere(ctx, &sphere); err != nil {
			return err
		}
	}
	if questionCount > 0 {
		return nil
	}
	for _, q := range database.DefaultQuestions {
		question := q
		question.Type = database.QuestionTypeText
		question.IsActive = true
		if err := m.CreateQuestion(ctx, &question); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockDB) GetStats(ctx context.Context) (*database.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &database.Stats{
		Spheres:       int64(len(m.spheres)),
		Questions:     int64(len(m.questions)),
		Answers:       int64(len(m.answers)),
		SphereRatings: int64(len(m.ratings)),
		FocusSpheres:  int64(len(m.focus)),
	}
	for _, u := range m.users {
		if u.TelegramID > 0 {
			stats.Users++
		} else if u.TelegramID < 0 {
			stats.Guests++
		}
	}
	for _, s := range m.settings {
		if s.IsPaused {
			stats.PausedUsers++
		}
	}
	return stats, nil
}

func (m *MockDB) Close() error {
	return nil
}
