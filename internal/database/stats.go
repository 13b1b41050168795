package database

import (
	"context"
	"fmt"
)

// Stats holds row counts for the db-stats command.
type Stats struct {
	Users         int64 `json:"users"`
	Guests        int64 `json:"guests"`
	Spheres       int64 `json:"spheres"`
	Questions     int64 `json:"questions"`
	Answers       int64 `json:"answers"`
	SphereRatings int64 `json:"sphere_ratings"`
	FocusSpheres  int64 `json:"focus_spheres"`
	PausedUsers   int64 `json:"paused_users"`
}

func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	db := c.db.WithContext(ctx)

	counts := []struct {
		name  string
		query func() error
	}{
		{"users", func() error { return db.Model(&User{}).Where("telegram_id > 0").Count(&stats.Users).Error }},
		{"guests", func() error { return db.Model(&User{}).Where("telegram_id < 0").Count(&stats.Guests).Error }},
		{"spheres", func() error { return db.Model(&Sphere{}).Count(&stats.Spheres).Error }},
		{"questions", func() error { return db.Model(&Question{}).Count(&stats.Questions).Error }},
		{"answers", func() error { return db.Model(&Answer{}).Count(&stats.Answers).Error }},
		{"sphere ratings", func() error { return db.Model(&SphereRating{}).Count(&stats.SphereRatings).Error }},
		{"focus spheres", func() error { return db.Model(&FocusSphere{}).Count(&stats.FocusSpheres).Error }},
		{"paused users", func() error {
			return db.Model(&UserSettings{}).Where("is_paused = ?", true).Count(&stats.PausedUsers).Error
		}},
	}
	for _, c := range counts {
		if err := c.query(); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.name, err)
		}
	}
	return &stats, nil
}
