package domain

import "time"

// TimestampLayout is the fixed-width UTC layout used for stored timestamps.
// Fixed width keeps lexical and chronological order identical, which the
// index sort keys rely on.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// UnknownSubjectName is reported for due documents whose subject is missing.
const UnknownSubjectName = "Unknown"

// ReviewItem is one entry of the today or overdue bucket.
type ReviewItem struct {
	DocumentID  string    `json:"document_id"`
	Title       string    `json:"title"`
	SubjectID   string    `json:"subject_id"`
	SubjectName string    `json:"subject_name"`
	CreatedAt   time.Time `json:"created_at"`
	Pages       int       `json:"pages"`
}

// DueReviews groups the pending documents of a user by local creation day.
type DueReviews struct {
	Today        []ReviewItem `json:"today"`
	Overdue      []ReviewItem `json:"overdue"`
	TodayCount   int          `json:"today_count"`
	OverdueCount int          `json:"overdue_count"`
}

// CorrectionResult is the outcome of a synchronous AI correction.
type CorrectionResult struct {
	OriginalText  string    `json:"original_text"`
	CorrectedText string    `json:"corrected_text"`
	ModelUsed     string    `json:"model_used"`
	Timestamp     time.Time `json:"timestamp"`
}
