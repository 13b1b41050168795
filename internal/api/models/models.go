package models

import "time"

// User is the public view of a user.
type User struct {
	ID         uint    `json:"id"`
	TelegramID int64   `json:"telegram_id"`
	Username   string  `json:"username,omitempty"`
	FirstName  string  `json:"first_name,omitempty"`
	LastName   string  `json:"last_name,omitempty"`
	Name       string  `json:"name,omitempty"`
	Gender     string  `json:"gender,omitempty"`
	BirthDate  *string `json:"birth_date"`
	IsGuest    bool    `json:"is_guest"`
	CreatedAt  string  `json:"created_at"`
}

// ProfileUpdate is the body of a profile update. Birth date accepts DD.MM.YYYY or YYYY-MM-DD.
type ProfileUpdate struct {
	Name      *string `json:"name"`
	Gender    *string `json:"gender"`
	BirthDate *string `json:"birth_date"`
}

type Sphere struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type SphereCreate struct {
	Key   string `json:"key" binding:"required"`
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

type SphereUpdate struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

type SphereRating struct {
	ID     uint   `json:"id"`
	Sphere string `json:"sphere"`
	Rating int    `json:"rating"`
	Date   string `json:"date"`
}

type SphereRatingInput struct {
	Sphere string `json:"sphere" binding:"required"`
	Rating int    `json:"rating"`
}

// SphereRatingsCreate is the body of a bulk rating submission.
type SphereRatingsCreate struct {
	Ratings []SphereRatingInput `json:"ratings" binding:"required"`
}

type FocusSphere struct {
	ID         uint   `json:"id"`
	Sphere     string `json:"sphere"`
	SelectedAt string `json:"selected_at"`
}

type FocusSpheresUpdate struct {
	Spheres []string `json:"spheres"`
}

type Question struct {
	ID       uint   `json:"id"`
	Sphere   string `json:"sphere"`
	Text     string `json:"text"`
	Type     string `json:"type"`
	IsActive *bool  `json:"is_active,omitempty"`
}

type QuestionCreate struct {
	Sphere   string `json:"sphere" binding:"required"`
	Text     string `json:"text" binding:"required"`
	Type     string `json:"type"`
	IsActive *bool  `json:"is_active"`
}

type QuestionUpdate struct {
	Sphere   *string `json:"sphere"`
	Text     *string `json:"text"`
	Type     *string `json:"type"`
	IsActive *bool   `json:"is_active"`
}

type Answer struct {
	ID         uint   `json:"id"`
	QuestionID uint   `json:"question_id"`
	Answer     string `json:"answer"`
	Date       string `json:"date"`
}

type AnswerCreate struct {
	QuestionID uint   `json:"question_id" binding:"required"`
	Answer     string `json:"answer"`
}

type Settings struct {
	NotificationTime       *string `json:"notification_time"`
	Language               string  `json:"language"`
	IsPaused               bool    `json:"is_paused"`
	WeeklyReportFrequency  string  `json:"weekly_report_frequency"`
	ReminderFrequency      string  `json:"reminder_frequency"`
	DarkTheme              bool    `json:"dark_theme"`
	AdminTestNotifications bool    `json:"admin_test_notifications"`
}

type SettingsUpdate struct {
	NotificationTime       *string `json:"notification_time"`
	Language               *string `json:"language"`
	IsPaused               *bool   `json:"is_paused"`
	WeeklyReportFrequency  *string `json:"weekly_report_frequency"`
	ReminderFrequency      *string `json:"reminder_frequency"`
	DarkTheme              *bool   `json:"dark_theme"`
	AdminTestNotifications *bool   `json:"admin_test_notifications"`
}

type Change struct {
	Sphere string  `json:"sphere"`
	Change float64 `json:"change"`
}

type Progress struct {
	CurrentRatings map[string]int     `json:"current_ratings"`
	AverageRatings map[string]float64 `json:"average_ratings"`
	Grown          []Change           `json:"grown"`
	Declined       []Change           `json:"declined"`
	PeriodDays     int                `json:"period_days"`
}

type WeeklySummary struct {
	Progress     Progress  `json:"progress"`
	FocusSpheres []string  `json:"focus_spheres"`
	AnswersCount int64     `json:"answers_count"`
	WeekStart    time.Time `json:"week_start"`
	WeekEnd      time.Time `json:"week_end"`
}

type MonthlyReport struct {
	Progress       Progress       `json:"progress"`
	FocusSpheres   []string       `json:"focus_spheres"`
	AnswersCount   int64          `json:"answers_count"`
	InitialRatings map[string]int `json:"initial_ratings"`
	CurrentRatings map[string]int `json:"current_ratings"`
	MonthStart     time.Time      `json:"month_start"`
	MonthEnd       time.Time      `json:"month_end"`
}

type ExportRating struct {
	Sphere string `json:"sphere"`
	Rating int    `json:"rating"`
	Date   string `json:"date"`
}

type ExportAnswer struct {
	QuestionID uint   `json:"question_id"`
	Answer     string `json:"answer"`
	Date       string `json:"date"`
}

// Export is the downloadable copy of all data of a user.
type Export struct {
	User         User           `json:"user"`
	Spheres      []ExportRating `json:"spheres"`
	Answers      []ExportAnswer `json:"answers"`
	FocusSpheres []string       `json:"focus_spheres"`
	Settings     Settings       `json:"settings"`
}

// DueUser is a reminder that would be sent, as shown in the admin preview.
type DueUser struct {
	UserID     uint   `json:"user_id"`
	TelegramID int64  `json:"telegram_id"`
	Name       string `json:"name"`
	QuestionID *uint  `json:"question_id"`
	IsTest     bool   `json:"is_test"`
}

// Job is the state of a scheduled job.
type Job struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Interval   string    `json:"interval"`
	LastRun    time.Time `json:"last_run"`
	NextRun    time.Time `json:"next_run"`
	RunCount   int       `json:"run_count"`
	ErrorCount int       `json:"error_count"`
	LastError  string    `json:"last_error,omitempty"`
	Enabled    bool      `json:"enabled"`
}

// SystemInfo is the process and storage state shown on the admin dashboard.
type SystemInfo struct {
	StartedAt     string     `json:"started_at"`
	Uptime        string     `json:"uptime"`
	Goroutines    int        `json:"goroutines"`
	MemoryRSS     uint64     `json:"memory_rss"`
	MemoryRSSText string     `json:"memory_rss_text"`
	DatabaseDisk  *DiskUsage `json:"database_disk,omitempty"`
}

// DiskUsage is the usage of the volume holding the database.
type DiskUsage struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
	Text        string  `json:"text"`
}
