package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// QuestionType describes the expected answer format.
type QuestionType string

const (
	QuestionTypeText        QuestionType = "text"
	QuestionTypeShortAnswer QuestionType = "short_answer"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	return t == QuestionTypeText || t == QuestionTypeShortAnswer
}

// Question is a catalog entry. Only active questions are ever selected.
type Question struct {
	gorm.Model
	Sphere   string       `gorm:"index;not null"`
	Text     string       `gorm:"not null"`
	Type     QuestionType `gorm:"not null;default:text"`
	IsActive bool         `gorm:"index;not null"`
}

// QuestionUpdate holds the optional fields of a question update.
type QuestionUpdate struct {
	Sphere   *string
	Text     *string
	Type     *QuestionType
	IsActive *bool
}

// Answer is a free-text reply of a user to a question. Answers are append-only.
type Answer struct {
	ID         uint      `gorm:"primarykey"`
	UserID     uint      `gorm:"index;not null"`
	QuestionID uint      `gorm:"index;not null"`
	Answer     string    `gorm:"not null"`
	Date       time.Time `gorm:"index;not null"`
}

func (c *Client) GetQuestionByID(ctx context.Context, id uint) (*Question, error) {
	var question Question
	if err := c.db.WithContext(ctx).First(&question, id).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get question", "error", err)
		}
		return nil, notFound(err)
	}
	return &question, nil
}

func (c *Client) GetQuestions(ctx context.Context, activeOnly bool) ([]Question, error) {
	var questions []Question
	query := c.db.WithContext(ctx).Order("id")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&questions).Error; err != nil {
		log.Error("failed to get questions", "error", err)
		return nil, err
	}
	return questions, nil
}

func (c *Client) GetActiveQuestionsBySphere(ctx context.Context, sphere string) ([]Question, error) {
	var questions []Question
	err := c.db.WithContext(ctx).
		Where("sphere = ? AND is_active = ?", sphere, true).
		Order("id").
		Find(&questions).Error
	if err != nil {
		log.Error("failed to get questions by sphere", "sphere", sphere, "error", err)
		return nil, err
	}
	return questions, nil
}

func (c *Client) CreateQuestion(ctx context.Context, question *Question) error {
	if err := c.db.WithContext(ctx).Create(question).Error; err != nil {
		log.Error("failed to create question", "error", err)
		return err
	}
	return nil
}

func (c *Client) UpdateQuestion(ctx context.Context, id uint, update QuestionUpdate) (*Question, error) {
	question, err := c.GetQuestionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if update.Sphere != nil {
		fields["sphere"] = *update.Sphere
	}
	if update.Text != nil {
		fields["text"] = *update.Text
	}
	if update.Type != nil {
		fields["type"] = *update.Type
	}
	if update.IsActive != nil {
		fields["is_active"] = *update.IsActive
	}
	if len(fields) == 0 {
		return question, nil
	}

	if err := c.db.WithContext(ctx).Model(question).Updates(fields).Error; err != nil {
		log.Error("failed to update question", "error", err)
		return nil, err
	}
	return c.GetQuestionByID(ctx, id)
}

func (c *Client) DeleteQuestion(ctx context.Context, id uint) error {
	res := c.db.WithContext(ctx).Unscoped().Delete(&Question{}, id)
	if res.Error != nil {
		log.Error("failed to delete question", "error", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Client) CreateAnswer(ctx context.Context, answer *Answer) error {
	answer.Date = answer.Date.UTC()
	if err := c.db.WithContext(ctx).Create(answer).Error; err != nil {
		log.Error("failed to create answer", "error", err)
		return err
	}
	return nil
}

// GetAnswers returns the answers of the user, newest first. A nil since returns all answers.
func (c *Client) GetAnswers(ctx context.Context, userID uint, since *time.Time) ([]Answer, error) {
	var answers []Answer
	query := c.db.WithContext(ctx).Where("user_id = ?", userID)
	if since != nil {
		query = query.Where("date >= ?", since.UTC())
	}
	if err := query.Order("date DESC, id DESC").Find(&answers).Error; err != nil {
		log.Error("failed to get answers", "error", err)
		return nil, err
	}
	return answers, nil
}

// GetAnsweredQuestionIDs returns the distinct question ids answered by the user at or after since.
func (c *Client) GetAnsweredQuestionIDs(ctx context.Context, userID uint, since time.Time) ([]uint, error) {
	var ids []uint
	err := c.db.WithContext(ctx).
		Model(&Answer{}).
		Where("user_id = ? AND date >= ?", userID, since.UTC()).
		Distinct().
		Pluck("question_id", &ids).Error
	if err != nil {
		log.Error("failed to get answered question ids", "error", err)
		return nil, err
	}
	return ids, nil
}

func (c *Client) HasAnsweredSince(ctx context.Context, userID uint, since time.Time) (bool, error) {
	count, err := c.CountAnswersSince(ctx, userID, since)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (c *Client) CountAnswersSince(ctx context.Context, userID uint, since time.Time) (int64, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&Answer{}).
		Where("user_id = ? AND date >= ?", userID, since.UTC()).
		Count(&count).Error
	if err != nil {
		log.Error("failed to count answers", "error", err)
		return 0, err
	}
	return count, nil
}

// GetLastAnswerTime returns the date of the newest answer, or nil if the user never answered.
func (c *Client) GetLastAnswerTime(ctx context.Context, userID uint) (*time.Time, error) {
	var answer Answer
	err := c.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC, id DESC").
		First(&answer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		log.Error("failed to get last answer", "error", err)
		return nil, err
	}
	return &answer.Date, nil
}
