package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// Sphere is a life category used to tag questions and ratings.
type Sphere struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;not null"`
	Name  string `gorm:"not null"`
	Color string `gorm:"not null"`
}

// SphereUpdate holds the mutable display attributes of a sphere.
type SphereUpdate struct {
	Name  *string
	Color *string
}

// SphereRating is a single self-assessment of a sphere. Ratings are append-only.
type SphereRating struct {
	ID     uint      `gorm:"primarykey"`
	UserID uint      `gorm:"index;not null"`
	Sphere string    `gorm:"index;not null"`
	Rating int       `gorm:"not null"`
	Date   time.Time `gorm:"index;not null"`
}

// FocusSphere is a sphere the user currently concentrates on.
// All members of a focus set share the SelectedAt of the replace that created them.
type FocusSphere struct {
	ID         uint      `gorm:"primarykey"`
	UserID     uint      `gorm:"index;not null"`
	Sphere     string    `gorm:"not null"`
	SelectedAt time.Time `gorm:"not null"`
}

func (c *Client) GetSpheres(ctx context.Context) ([]Sphere, error) {
	var spheres []Sphere
	if err := c.db.WithContext(ctx).Order("id").Find(&spheres).Error; err != nil {
		log.Error("failed to get spheres", "error", err)
		return nil, err
	}
	return spheres, nil
}

func (c *Client) GetSphere(ctx context.Context, key string) (*Sphere, error) {
	var sphere Sphere
	if err := c.db.WithContext(ctx).Where("key = ?", key).First(&sphere).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get sphere", "error", err)
		}
		return nil, notFound(err)
	}
	return &sphere, nil
}

func (c *Client) CreateSphere(ctx context.Context, sphere *Sphere) error {
	if err := c.db.WithContext(ctx).Create(sphere).Error; err != nil {
		log.Error("failed to create sphere", "error", err)
		return err
	}
	return nil
}

func (c *Client) UpdateSphere(ctx context.Context, key string, update SphereUpdate) (*Sphere, error) {
	sphere, err := c.GetSphere(ctx, key)
	if err != nil {
		return nil, err
	}
	if update.Name != nil {
		sphere.Name = *update.Name
	}
	if update.Color != nil {
		sphere.Color = *update.Color
	}
	if err := c.db.WithContext(ctx).Save(sphere).Error; err != nil {
		log.Error("failed to update sphere", "error", err)
		return nil, err
	}
	return sphere, nil
}

// DeleteSphere removes the sphere and every rating, focus selection and question tagged with it.
func (c *Client) DeleteSphere(ctx context.Context, key string) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Where("key = ?", key).Delete(&Sphere{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		for _, model := range []any{&SphereRating{}, &FocusSphere{}, &Question{}} {
			if err := tx.Unscoped().Where("sphere = ?", key).Delete(model).Error; err != nil {
				log.Error("failed to delete sphere data", "sphere", key, "error", err)
				return err
			}
		}
		return nil
	})
}

func (c *Client) CreateSphereRatings(ctx context.Context, ratings []SphereRating) error {
	if len(ratings) == 0 {
		return nil
	}
	for i := range ratings {
		ratings[i].Date = ratings[i].Date.UTC()
	}
	if err := c.db.WithContext(ctx).Create(&ratings).Error; err != nil {
		log.Error("failed to create sphere ratings", "error", err)
		return err
	}
	return nil
}

// GetSphereRatings returns all ratings of the user, newest first.
func (c *Client) GetSphereRatings(ctx context.Context, userID uint) ([]SphereRating, error) {
	var ratings []SphereRating
	err := c.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC, id DESC").
		Find(&ratings).Error
	if err != nil {
		log.Error("failed to get sphere ratings", "error", err)
		return nil, err
	}
	return ratings, nil
}

// GetLatestSphereRatings returns the current rating of every rated sphere.
func (c *Client) GetLatestSphereRatings(ctx context.Context, userID uint) ([]SphereRating, error) {
	ratings, err := c.GetSphereRatings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return LatestPerSphere(ratings), nil
}

// LatestPerSphere picks the first rating per sphere from ratings ordered newest first.
func LatestPerSphere(ratings []SphereRating) []SphereRating {
	seen := make(map[string]struct{})
	latest := make([]SphereRating, 0)
	for _, r := range ratings {
		if _, ok := seen[r.Sphere]; ok {
			continue
		}
		seen[r.Sphere] = struct{}{}
		latest = append(latest, r)
	}
	return latest
}

// GetFocusSpheres returns the current focus set in selection order.
func (c *Client) GetFocusSpheres(ctx context.Context, userID uint) ([]FocusSphere, error) {
	var spheres []FocusSphere
	if err := c.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&spheres).Error; err != nil {
		log.Error("failed to get focus spheres", "error", err)
		return nil, err
	}
	return spheres, nil
}

// ReplaceFocusSpheres swaps the whole focus set of the user for the given spheres.
func (c *Client) ReplaceFocusSpheres(ctx context.Context, userID uint, spheres []string, selectedAt time.Time) ([]FocusSphere, error) {
	focus := make([]FocusSphere, 0, len(spheres))
	for _, s := range spheres {
		focus = append(focus, FocusSphere{UserID: userID, Sphere: s, SelectedAt: selectedAt.UTC()})
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&FocusSphere{}).Error; err != nil {
			return err
		}
		if len(focus) == 0 {
			return nil
		}
		return tx.Create(&focus).Error
	})
	if err != nil {
		log.Error("failed to replace focus spheres", "error", err)
		return nil, err
	}
	return focus, nil
}
