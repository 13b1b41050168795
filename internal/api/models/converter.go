package models

import (
	"time"

	"github.com/antichaos/antichaos/internal/database"
	"github.com/antichaos/antichaos/internal/engine"
	"github.com/antichaos/antichaos/internal/progress"
	"github.com/antichaos/antichaos/internal/reminder"
	"github.com/antichaos/antichaos/internal/scheduler"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

// TimeFormat is the format of all timestamps in responses.
const TimeFormat = time.RFC3339

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeFormat)
}

// ToUser converts a database.User to its public view.
func ToUser(u *database.User) User {
	user := User{
		ID:         u.ID,
		TelegramID: u.TelegramID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Name:       u.Name,
		Gender:     u.Gender,
		IsGuest:    u.IsGuest(),
		CreatedAt:  formatTime(u.CreatedAt),
	}
	if u.BirthDate != nil {
		user.BirthDate = lo.ToPtr(u.BirthDate.Format(time.DateOnly))
	}
	return user
}

func ToSphere(s database.Sphere) Sphere {
	return Sphere{Key: s.Key, Name: s.Name, Color: s.Color}
}

func ToSpheres(spheres []database.Sphere) []Sphere {
	return lo.Map(spheres, func(s database.Sphere, _ int) Sphere { return ToSphere(s) })
}

func ToSphereRatings(ratings []database.SphereRating) []SphereRating {
	return lo.Map(ratings, func(r database.SphereRating, _ int) SphereRating {
		return SphereRating{ID: r.ID, Sphere: r.Sphere, Rating: r.Rating, Date: formatTime(r.Date)}
	})
}

func ToFocusSpheres(focus []database.FocusSphere) []FocusSphere {
	return lo.Map(focus, func(f database.FocusSphere, _ int) FocusSphere {
		return FocusSphere{ID: f.ID, Sphere: f.Sphere, SelectedAt: formatTime(f.SelectedAt)}
	})
}

// ToQuestion converts a question for regular users, hiding the active flag.
func ToQuestion(q *database.Question) Question {
	return Question{ID: q.ID, Sphere: q.Sphere, Text: q.Text, Type: string(q.Type)}
}

// ToAdminQuestion converts a question including its active flag.
func ToAdminQuestion(q *database.Question) Question {
	question := ToQuestion(q)
	question.IsActive = lo.ToPtr(q.IsActive)
	return question
}

func ToAdminQuestions(questions []database.Question) []Question {
	return lo.Map(questions, func(q database.Question, _ int) Question { return ToAdminQuestion(&q) })
}

// ToQuestionUpdate converts the request body to a database update.
func ToQuestionUpdate(u QuestionUpdate) database.QuestionUpdate {
	update := database.QuestionUpdate{
		Sphere:   u.Sphere,
		Text:     u.Text,
		IsActive: u.IsActive,
	}
	if u.Type != nil {
		update.Type = lo.ToPtr(database.QuestionType(*u.Type))
	}
	return update
}

func ToAnswer(a *database.Answer) Answer {
	return Answer{ID: a.ID, QuestionID: a.QuestionID, Answer: a.Answer, Date: formatTime(a.Date)}
}

func ToAnswers(answers []database.Answer) []Answer {
	return lo.Map(answers, func(a database.Answer, _ int) Answer { return ToAnswer(&a) })
}

// ToSettings converts settings. An unset notification time is rendered as null.
func ToSettings(s *database.UserSettings) Settings {
	settings := Settings{
		Language:               s.Language,
		IsPaused:               s.IsPaused,
		WeeklyReportFrequency:  string(s.WeeklyReportFrequency),
		ReminderFrequency:      string(s.ReminderFrequency),
		DarkTheme:              s.DarkTheme,
		AdminTestNotifications: s.AdminTestNotifications,
	}
	if s.NotificationTime != "" {
		settings.NotificationTime = lo.ToPtr(s.NotificationTime)
	}
	return settings
}

// ToSettingsUpdate converts the request body to a database update.
func ToSettingsUpdate(u SettingsUpdate) database.SettingsUpdate {
	update := database.SettingsUpdate{
		NotificationTime:       u.NotificationTime,
		Language:               u.Language,
		IsPaused:               u.IsPaused,
		DarkTheme:              u.DarkTheme,
		AdminTestNotifications: u.AdminTestNotifications,
	}
	if u.WeeklyReportFrequency != nil {
		update.WeeklyReportFrequency = lo.ToPtr(database.ReportFrequency(*u.WeeklyReportFrequency))
	}
	if u.ReminderFrequency != nil {
		update.ReminderFrequency = lo.ToPtr(database.ReportFrequency(*u.ReminderFrequency))
	}
	return update
}

func toChanges(changes []progress.Change) []Change {
	return lo.Map(changes, func(c progress.Change, _ int) Change { return Change{Sphere: c.Sphere, Change: c.Delta} })
}

func ToProgress(p *progress.Progress) Progress {
	return Progress{
		CurrentRatings: p.CurrentRatings,
		AverageRatings: p.AverageRatings,
		Grown:          toChanges(p.Grown),
		Declined:       toChanges(p.Declined),
		PeriodDays:     p.PeriodDays,
	}
}

func ToWeeklySummary(w *progress.WeeklySummary) WeeklySummary {
	return WeeklySummary{
		Progress:     ToProgress(w.Progress),
		FocusSpheres: w.FocusSpheres,
		AnswersCount: w.AnswersCount,
		WeekStart:    w.WeekStart,
		WeekEnd:      w.WeekEnd,
	}
}

func ToMonthlyReport(m *progress.MonthlyReport) MonthlyReport {
	return MonthlyReport{
		Progress:       ToProgress(m.Progress),
		FocusSpheres:   m.FocusSpheres,
		AnswersCount:   m.AnswersCount,
		InitialRatings: m.InitialRatings,
		CurrentRatings: m.CurrentRatings,
		MonthStart:     m.MonthStart,
		MonthEnd:       m.MonthEnd,
	}
}

func ToExport(e *engine.Export) Export {
	return Export{
		User: ToUser(e.User),
		Spheres: lo.Map(e.Ratings, func(r database.SphereRating, _ int) ExportRating {
			return ExportRating{Sphere: r.Sphere, Rating: r.Rating, Date: formatTime(r.Date)}
		}),
		Answers: lo.Map(e.Answers, func(a database.Answer, _ int) ExportAnswer {
			return ExportAnswer{QuestionID: a.QuestionID, Answer: a.Answer, Date: formatTime(a.Date)}
		}),
		FocusSpheres: e.FocusSpheres,
		Settings:     ToSettings(e.Settings),
	}
}

func ToDueUsers(due []reminder.Due) []DueUser {
	return lo.Map(due, func(d reminder.Due, _ int) DueUser {
		return DueUser{
			UserID:     d.User.ID,
			TelegramID: d.User.TelegramID,
			Name:       d.User.DisplayName(),
			QuestionID: d.QuestionID,
			IsTest:     d.IsTest,
		}
	})
}

func ToJob(j scheduler.JobInfo) Job {
	return Job{
		ID:         j.ID,
		Name:       j.Name,
		Status:     string(j.Status),
		Interval:   j.Interval.String(),
		LastRun:    j.LastRun,
		NextRun:    j.NextRun,
		RunCount:   j.RunCount,
		ErrorCount: j.ErrorCount,
		LastError:  j.LastError,
		Enabled:    j.Enabled,
	}
}

// ToSystemInfo converts engine.SystemInfo to SystemInfo.
func ToSystemInfo(info *engine.SystemInfo) SystemInfo {
	out := SystemInfo{
		StartedAt:     formatTime(info.StartedAt),
		Uptime:        info.Uptime.Truncate(time.Second).String(),
		Goroutines:    info.Goroutines,
		MemoryRSS:     info.MemoryRSS,
		MemoryRSSText: humanize.Bytes(info.MemoryRSS),
	}
	if d := info.DatabaseDisk; d != nil {
		out.DatabaseDisk = &DiskUsage{
			Path:        d.Path,
			Total:       d.Total,
			Used:        d.Used,
			UsedPercent: d.UsedPercent,
			Text:        humanize.Bytes(d.Used) + " of " + humanize.Bytes(d.Total),
		}
	}
	return out
}
