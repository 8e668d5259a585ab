package document

import (
	"testing"
	"time"

	"github.com/1282saa/paperone/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(id, subjectID string, created time.Time, completed bool) *domain.Document {
	return &domain.Document{
		DocumentID:      id,
		SubjectID:       subjectID,
		Title:           "title " + id,
		Pages:           2,
		CreatedAt:       created,
		ReviewCompleted: completed,
	}
}

func TestComputeDueReviews(t *testing.T) {
	// 2025-04-02 10:00 in UTC+9.
	now := time.Date(2025, 4, 2, 1, 0, 0, 0, time.UTC)
	names := map[string]string{"s1": "Math"}

	t.Run("TodayAndOverdue", func(t *testing.T) {
		docs := []*domain.Document{
			doc("a", "s1", now.Add(-time.Hour), false),
			doc("b", "s1", now.Add(-30*time.Minute), false),
			doc("c", "s1", now.Add(-24*time.Hour), false),
		}
		due := ComputeDueReviews(docs, names, now)
		assert.Equal(t, 2, due.TodayCount)
		assert.Equal(t, 1, due.OverdueCount)
		require.Len(t, due.Today, 2)
		assert.Equal(t, "a", due.Today[0].DocumentID)
		assert.Equal(t, "b", due.Today[1].DocumentID)
		assert.Equal(t, "c", due.Overdue[0].DocumentID)
		assert.Equal(t, "Math", due.Overdue[0].SubjectName)
		assert.Equal(t, 2, due.Overdue[0].Pages)
	})

	t.Run("LocalDayBoundary", func(t *testing.T) {
		docs := []*domain.Document{
			// 2025-04-02 00:30 local, still the previous UTC day.
			doc("late-utc", "s1", time.Date(2025, 4, 1, 15, 30, 0, 0, time.UTC), false),
			// 2025-04-01 23:59 local.
			doc("before-midnight", "s1", time.Date(2025, 4, 1, 14, 59, 0, 0, time.UTC), false),
		}
		due := ComputeDueReviews(docs, names, now)
		require.Len(t, due.Today, 1)
		assert.Equal(t, "late-utc", due.Today[0].DocumentID)
		require.Len(t, due.Overdue, 1)
		assert.Equal(t, "before-midnight", due.Overdue[0].DocumentID)
	})

	t.Run("CompletedNeverDue", func(t *testing.T) {
		docs := []*domain.Document{
			doc("today", "s1", now, true),
			doc("old", "s1", now.AddDate(0, -2, 0), true),
		}
		due := ComputeDueReviews(docs, names, now)
		assert.Empty(t, due.Today)
		assert.Empty(t, due.Overdue)
	})

	t.Run("MissingCreationTimeSkipped", func(t *testing.T) {
		due := ComputeDueReviews([]*domain.Document{doc("x", "s1", time.Time{}, false)}, names, now)
		assert.Zero(t, due.TodayCount+due.OverdueCount)
	})

	t.Run("UnknownSubject", func(t *testing.T) {
		due := ComputeDueReviews([]*domain.Document{doc("x", "gone", now, false)}, names, now)
		require.Len(t, due.Today, 1)
		assert.Equal(t, domain.UnknownSubjectName, due.Today[0].SubjectName)
	})

	t.Run("FutureIgnored", func(t *testing.T) {
		due := ComputeDueReviews([]*domain.Document{doc("x", "s1", now.Add(48*time.Hour), false)}, names, now)
		assert.Zero(t, due.TodayCount+due.OverdueCount)
	})

	t.Run("Empty", func(t *testing.T) {
		due := ComputeDueReviews(nil, names, now)
		assert.NotNil(t, due.Today)
		assert.NotNil(t, due.Overdue)
		assert.Zero(t, due.TodayCount)
	})
}
