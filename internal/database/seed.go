package database

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultSpheres is the catalog of spheres created on first start.
var DefaultSpheres = []Sphere{
	{Key: "health", Name: "Health", Color: "#52c41a"},
	{Key: "relationships", Name: "Relationships", Color: "#1890ff"},
	{Key: "money", Name: "Money", Color: "#faad14"},
	{Key: "energy", Name: "Energy", Color: "#fa8c16"},
	{Key: "career", Name: "Career", Color: "#722ed1"},
	{Key: "other", Name: "Other", Color: "#eb2f96"},
}

// DefaultQuestions is the question catalog created when no questions exist yet.
var DefaultQuestions = []Question{
	{Sphere: "health", Text: "How do you feel physically today?"},
	{Sphere: "health", Text: "What did you do for your health today?"},
	{Sphere: "health", Text: "What is your energy level today?"},
	{Sphere: "health", Text: "What helps you stay healthy?"},

	{Sphere: "relationships", Text: "How are things with the people close to you?"},
	{Sphere: "relationships", Text: "What did you do to improve your relationships today?"},
	{Sphere: "relationships", Text: "Who did you spend time with today?"},
	{Sphere: "relationships", Text: "How do you stay in touch with the people who matter to you?"},

	{Sphere: "money", Text: "How would you rate your financial situation?"},
	{Sphere: "money", Text: "What did you do to improve your finances today?"},
	{Sphere: "money", Text: "How do you manage your money?"},
	{Sphere: "money", Text: "What matters most for your financial well-being?"},

	{Sphere: "energy", Text: "How energized are you today?"},
	{Sphere: "energy", Text: "What gives you energy?"},
	{Sphere: "energy", Text: "What drains your energy?"},
	{Sphere: "energy", Text: "How do you recharge?"},

	{Sphere: "career", Text: "How is your career progressing?"},
	{Sphere: "career", Text: "What did you do for your career today?"},
	{Sphere: "career", Text: "What matters for your professional growth?"},
	{Sphere: "career", Text: "Which skills are you developing?"},

	{Sphere: "other", Text: "What important thing happened in your life today?"},
	{Sphere: "other", Text: "What are you grateful for today?"},
	{Sphere: "other", Text: "What new thing did you learn today?"},
	{Sphere: "other", Text: "What was the brightest moment of your day?"},
}

// SeedCatalog creates missing default spheres and, if the catalog is empty, the default questions.
// It is safe to run on every start.
func (c *Client) SeedCatalog(ctx context.Context) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		spheres := make([]Sphere, len(DefaultSpheres))
		copy(spheres, DefaultSpheres)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&spheres).Error; err != nil {
			return fmt.Errorf("failed to seed spheres: %w", err)
		}

		var count int64
		if err := tx.Unscoped().Model(&Question{}).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count questions: %w", err)
		}
		if count > 0 {
			return nil
		}

		questions := make([]Question, len(DefaultQuestions))
		for i, q := range DefaultQuestions {
			q.Type = QuestionTypeText
			q.IsActive = true
			questions[i] = q
		}
		if err := tx.Create(&questions).Error; err != nil {
			return fmt.Errorf("failed to seed questions: %w", err)
		}
		log.Info("Seeded default question catalog", "questions", len(questions))
		return nil
	})
}
