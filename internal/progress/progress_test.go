package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/antichaos/antichaos/internal/database"
	dbmock "github.com/antichaos/antichaos/internal/database/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func newAggregator(t *testing.T, ratings ...database.SphereRating) (*Aggregator, *dbmock.MockDB) {
	t.Helper()
	db := dbmock.NewMockDB()
	require.NoError(t, db.CreateSphereRatings(context.Background(), ratings))
	return NewAggregator(db, func() time.Time { return now }), db
}

func TestCalculate_GrownWithinWeek(t *testing.T) {
	agg, _ := newAggregator(t,
		database.SphereRating{UserID: 1, Sphere: "health", Rating: 3, Date: now.Add(-days(6))},
		database.SphereRating{UserID: 1, Sphere: "health", Rating: 7, Date: now.Add(-days(1))},
	)

	p, err := agg.Calculate(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, p.CurrentRatings["health"])
	assert.InDelta(t, 5.0, p.AverageRatings["health"], 1e-9)
	require.Len(t, p.Grown, 1)
	assert.Equal(t, "health", p.Grown[0].Sphere)
	assert.InDelta(t, 2.0, p.Grown[0].Delta, 1e-9)
	assert.Empty(t, p.Declined)
	assert.Equal(t, 7, p.PeriodDays)
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name         string
		ratings      []database.SphereRating
		days         int
		wantAverage  map[string]float64
		wantGrown    []string
		wantDeclined []string
	}{
		{
			name: "declined",
			ratings: []database.SphereRating{
				{UserID: 1, Sphere: "money", Rating: 8, Date: now.Add(-days(3))},
				{UserID: 1, Sphere: "money", Rating: 4, Date: now.Add(-days(1))},
			},
			days:         7,
			wantAverage:  map[string]float64{"money": 6},
			wantGrown:    []string{},
			wantDeclined: []string{"money"},
		},
		{
			name: "equal is neither",
			ratings: []database.SphereRating{
				{UserID: 1, Sphere: "energy", Rating: 5, Date: now.Add(-days(2))},
			},
			days:         7,
			wantAverage:  map[string]float64{"energy": 5},
			wantGrown:    []string{},
			wantDeclined: []string{},
		},
		{
			name: "ratings outside the window are ignored for the average",
			ratings: []database.SphereRating{
				{UserID: 1, Sphere: "career", Rating: 1, Date: now.Add(-days(20))},
				{UserID: 1, Sphere: "career", Rating: 6, Date: now.Add(-days(5))},
				{UserID: 1, Sphere: "career", Rating: 8, Date: now.Add(-days(1))},
			},
			days:         7,
			wantAverage:  map[string]float64{"career": 7},
			wantGrown:    []string{"career"},
			wantDeclined: []string{},
		},
		{
			name: "sphere without window ratings is neither",
			ratings: []database.SphereRating{
				{UserID: 1, Sphere: "other", Rating: 9, Date: now.Add(-days(40))},
			},
			days:         7,
			wantAverage:  map[string]float64{},
			wantGrown:    []string{},
			wantDeclined: []string{},
		},
		{
			name: "other users are ignored",
			ratings: []database.SphereRating{
				{UserID: 2, Sphere: "health", Rating: 9, Date: now.Add(-days(1))},
			},
			days:         7,
			wantAverage:  map[string]float64{},
			wantGrown:    []string{},
			wantDeclined: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, _ := newAggregator(t, tt.ratings...)
			p, err := agg.Calculate(context.Background(), 1, tt.days)
			require.NoError(t, err)

			assert.Equal(t, len(tt.wantAverage), len(p.AverageRatings))
			for sphere, want := range tt.wantAverage {
				assert.InDelta(t, want, p.AverageRatings[sphere], 1e-9, sphere)
			}
			assert.Equal(t, tt.wantGrown, spheres(p.Grown))
			assert.Equal(t, tt.wantDeclined, spheres(p.Declined))
		})
	}
}

func TestWeeklySummary(t *testing.T) {
	ctx := context.Background()
	agg, db := newAggregator(t,
		database.SphereRating{UserID: 1, Sphere: "health", Rating: 3, Date: now.Add(-days(6))},
		database.SphereRating{UserID: 1, Sphere: "health", Rating: 7, Date: now.Add(-days(1))},
	)
	_, err := db.ReplaceFocusSpheres(ctx, 1, []string{"health", "money"}, now.Add(-days(10)))
	require.NoError(t, err)
	for _, d := range []int{1, 3, 9} {
		require.NoError(t, db.CreateAnswer(ctx, &database.Answer{UserID: 1, QuestionID: 1, Answer: "x", Date: now.Add(-days(d))}))
	}

	summary, err := agg.WeeklySummary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"health", "money"}, summary.FocusSpheres)
	assert.EqualValues(t, 2, summary.AnswersCount)
	assert.True(t, summary.WeekStart.Equal(now.Add(-days(7))))
	assert.True(t, summary.WeekEnd.Equal(now))
	assert.Equal(t, 7, summary.Progress.PeriodDays)
	assert.Equal(t, []string{"health"}, spheres(summary.Progress.Grown))
}

func TestMonthlyReport(t *testing.T) {
	ctx := context.Background()
	agg, _ := newAggregator(t,
		database.SphereRating{UserID: 1, Sphere: "health", Rating: 2, Date: now.Add(-days(60))},
		database.SphereRating{UserID: 1, Sphere: "health", Rating: 4, Date: now.Add(-days(31))},
		database.SphereRating{UserID: 1, Sphere: "health", Rating: 6, Date: now.Add(-days(10))},
		database.SphereRating{UserID: 1, Sphere: "money", Rating: 5, Date: now.Add(-days(2))},
	)

	report, err := agg.MonthlyReport(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"health": 4}, report.InitialRatings)
	assert.Equal(t, map[string]int{"health": 6, "money": 5}, report.CurrentRatings)
	assert.Equal(t, 30, report.Progress.PeriodDays)
	assert.True(t, report.MonthStart.Equal(now.Add(-days(30))))
}

func TestWeeklySummary_StoreError(t *testing.T) {
	agg, db := newAggregator(t)
	boom := errors.New("boom")
	db.GetFocusSpheresError = boom

	_, err := agg.WeeklySummary(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func spheres(changes []Change) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.Sphere)
	}
	return out
}
