package document

import (
	"time"

	"github.com/1282saa/paperone/internal/domain"
)

// ReviewZone is the fixed UTC+9 zone whose calendar days decide whether a
// document is due today or overdue.
var ReviewZone = time.FixedZone("KST", 9*60*60)

// ComputeDueReviews splits the pending documents into those created on
// today's local day and those created earlier. Completed documents and
// documents without a creation time are skipped. Both lists keep the order
// of docs.
func ComputeDueReviews(docs []*domain.Document, subjectNames map[string]string, now time.Time) domain.DueReviews {
	result := domain.DueReviews{
		Today:   []domain.ReviewItem{},
		Overdue: []domain.ReviewItem{},
	}
	if len(docs) == 0 {
		return result
	}

	today := localDay(now)
	for _, doc := range docs {
		if doc.ReviewCompleted || doc.CreatedAt.IsZero() {
			continue
		}

		name, ok := subjectNames[doc.SubjectID]
		if !ok {
			name = domain.UnknownSubjectName
		}
		item := domain.ReviewItem{
			DocumentID:  doc.DocumentID,
			Title:       doc.Title,
			SubjectID:   doc.SubjectID,
			SubjectName: name,
			CreatedAt:   doc.CreatedAt,
			Pages:       doc.Pages,
		}

		day := localDay(doc.CreatedAt)
		switch {
		case day.Equal(today):
			result.Today = append(result.Today, item)
		case day.Before(today):
			result.Overdue = append(result.Overdue, item)
		}
	}

	result.TodayCount = len(result.Today)
	result.OverdueCount = len(result.Overdue)
	return result
}

// localDay truncates t to midnight of its civil date in ReviewZone.
func localDay(t time.Time) time.Time {
	y, m, d := t.In(ReviewZone).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ReviewZone)
}
