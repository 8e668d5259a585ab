package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	appErrors "github.com/1282saa/paperone/pkg/errors"
)

const (
	MaxDocumentTitleLength = 200
	DefaultDocumentPages   = 1
)

// Document is a scanned note belonging to exactly one subject.
//
// ReviewCount and LastReviewedAt are history fields: they only move forward
// when a review is completed and are never reset by toggling back.
// NextReviewAt is stored and returned but not used by any scheduling.
type Document struct {
	DocumentID       string     `json:"document_id"`
	SubjectID        string     `json:"subject_id"`
	UserID           string     `json:"user_id"`
	Title            string     `json:"title"`
	ExtractedText    *string    `json:"extracted_text"`
	OriginalFilename *string    `json:"original_filename"`
	ImageURL         *string    `json:"image_url"`
	ThumbnailURL     *string    `json:"thumbnail_url"`
	FileSize         *int64     `json:"file_size"`
	Pages            int        `json:"pages"`
	ReviewCount      int        `json:"review_count"`
	ReviewCompleted  bool       `json:"review_completed"`
	LastReviewedAt   *time.Time `json:"last_reviewed_at"`
	NextReviewAt     *time.Time `json:"next_review_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewDocument carries the caller-supplied fields of a document to create.
type NewDocument struct {
	SubjectID        string
	Title            string
	ExtractedText    *string
	OriginalFilename *string
	ImageURL         *string
	ThumbnailURL     *string
	FileSize         *int64
	Pages            *int
}

// Validate checks title and page rules.
func (n NewDocument) Validate() error {
	if strings.TrimSpace(n.SubjectID) == "" {
		return appErrors.NewValidation("subject_id is required")
	}
	if err := ValidateDocumentTitle(n.Title); err != nil {
		return err
	}
	if n.Pages != nil {
		if err := ValidatePages(*n.Pages); err != nil {
			return err
		}
	}
	if n.FileSize != nil && *n.FileSize < 0 {
		return appErrors.NewValidation("file_size must not be negative")
	}
	return nil
}

// DocumentUpdate is a field mask. Absent fields are left unchanged; an
// explicit null clears the nullable fields and is rejected for Title and
// Pages.
type DocumentUpdate struct {
	Title         Optional[string]
	ExtractedText Optional[string]
	Pages         Optional[int]
	ImageURL      Optional[string]
	ThumbnailURL  Optional[string]
}

// Apply copies the set fields of u onto d. It reports whether the page count
// changed, which is what decides if subject statistics need recomputing.
func (u DocumentUpdate) Apply(d *Document) (pagesChanged bool, err error) {
	if err := required(u.Title, "title"); err != nil {
		return false, err
	}
	if err := required(u.Pages, "pages"); err != nil {
		return false, err
	}
	if title, ok := u.Title.Get(); ok {
		if err := ValidateDocumentTitle(title); err != nil {
			return false, err
		}
	}
	if pages, ok := u.Pages.Get(); ok {
		if err := ValidatePages(pages); err != nil {
			return false, err
		}
	}

	if title, ok := u.Title.Get(); ok {
		d.Title = title
	}
	applyNullable(u.ExtractedText, &d.ExtractedText)
	applyNullable(u.ImageURL, &d.ImageURL)
	applyNullable(u.ThumbnailURL, &d.ThumbnailURL)
	if pages, ok := u.Pages.Get(); ok && pages != d.Pages {
		d.Pages = pages
		pagesChanged = true
	}
	return pagesChanged, nil
}

// ToggleReview flips the review state. Completing a review stamps
// LastReviewedAt and bumps ReviewCount; returning to pending changes nothing
// else.
func (d *Document) ToggleReview(now time.Time) {
	d.ReviewCompleted = !d.ReviewCompleted
	if d.ReviewCompleted {
		reviewed := now.UTC()
		d.LastReviewedAt = &reviewed
		d.ReviewCount++
	}
}

// ValidateDocumentTitle checks the 1..200 character rule.
func ValidateDocumentTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n == 0 {
		return appErrors.NewValidation("title is required")
	}
	if n > MaxDocumentTitleLength {
		return appErrors.NewValidation("title must be at most 200 characters")
	}
	return nil
}

// ValidatePages requires at least one page.
func ValidatePages(pages int) error {
	if pages < 1 {
		return appErrors.NewValidation("pages must be greater than or equal to 1")
	}
	return nil
}
