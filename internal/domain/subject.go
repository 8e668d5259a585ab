// Package domain holds the study-notes entities and the rules that apply to
// their fields independent of storage or transport.
package domain

import (
	"time"
	"unicode/utf8"

	appErrors "github.com/1282saa/paperone/pkg/errors"
)

const (
	MaxSubjectNameLength  = 100
	MaxSubjectColorLength = 20
	DefaultSubjectColor   = "#E8E8FF"

	EntityTypeSubject  = "SUBJECT"
	EntityTypeDocument = "DOCUMENT"
)

// Subject is a study topic owned by one user. TotalDocuments and TotalPages
// are derived from the subject's documents by the statistics recompute.
type Subject struct {
	SubjectID      string    `json:"subject_id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Color          string    `json:"color"`
	Description    *string   `json:"description"`
	TotalDocuments int       `json:"total_documents"`
	TotalPages     int       `json:"total_pages"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SubjectUpdate is a field mask. Absent fields are left unchanged; an
// explicit null clears Description and resets Color to the default.
type SubjectUpdate struct {
	Name        Optional[string]
	Color       Optional[string]
	Description Optional[string]
}

// IsEmpty reports whether no field is set.
func (u SubjectUpdate) IsEmpty() bool {
	return !u.Name.Set && !u.Color.Set && !u.Description.Set
}

// ValidateSubjectName checks the 1..100 character rule.
func ValidateSubjectName(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return appErrors.NewValidation("name is required")
	}
	if n > MaxSubjectNameLength {
		return appErrors.NewValidation("name must be at most 100 characters")
	}
	return nil
}

// ValidateSubjectColor checks the color length limit.
func ValidateSubjectColor(color string) error {
	if utf8.RuneCountInString(color) > MaxSubjectColorLength {
		return appErrors.NewValidation("color must be at most 20 characters")
	}
	return nil
}

// Apply copies the set fields of u onto s after validating them.
func (u SubjectUpdate) Apply(s *Subject) error {
	if err := required(u.Name, "name"); err != nil {
		return err
	}
	if name, ok := u.Name.Get(); ok {
		if err := ValidateSubjectName(name); err != nil {
			return err
		}
	}
	if color, ok := u.Color.Get(); ok {
		if err := ValidateSubjectColor(color); err != nil {
			return err
		}
	}

	if name, ok := u.Name.Get(); ok {
		s.Name = name
	}
	if u.Color.IsNull() {
		s.Color = DefaultSubjectColor
	} else if color, ok := u.Color.Get(); ok {
		s.Color = color
	}
	applyNullable(u.Description, &s.Description)
	return nil
}
