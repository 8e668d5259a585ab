// Package repository maps subjects, documents and tutor messages onto the
// key-value store.
// Every item passes through a typed record on the way in and out, and an
// item that does not fit the record schema is rejected with a validation
// error instead of being coerced.
package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/1282saa/paperone/internal/domain"
	"github.com/1282saa/paperone/internal/store"
	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

const (
	DefaultUserIndex    = "UserIndex"
	DefaultSubjectIndex = "SubjectIndex"

	attrUserID     = "user_id"
	attrSubjectID  = "subject_id"
	attrCreatedAt  = "created_at"
	attrEntityType = "entity_type"
)

// SubjectsTable describes the subjects table and its user index.
func SubjectsTable(name, userIndex string) store.TableDefinition {
	return store.TableDefinition{
		Name: name,
		Indexes: []store.IndexDefinition{
			{Name: userIndex, PartitionAttr: attrUserID, SortAttr: attrCreatedAt},
		},
	}
}

// DocumentsTable describes the documents table and its two indexes.
func DocumentsTable(name, userIndex, subjectIndex string) store.TableDefinition {
	return store.TableDefinition{
		Name: name,
		Indexes: []store.IndexDefinition{
			{Name: userIndex, PartitionAttr: attrUserID, SortAttr: attrCreatedAt},
			{Name: subjectIndex, PartitionAttr: attrSubjectID, SortAttr: attrCreatedAt},
		},
	}
}

func subjectKey(userID, subjectID string) store.Key {
	return store.Key{PK: "USER#" + userID, SK: "SUBJECT#" + subjectID}
}

func documentKey(subjectID, documentID string) store.Key {
	return store.Key{PK: "SUBJECT#" + subjectID, SK: "DOCUMENT#" + documentID}
}

type subjectRecord struct {
	PK             string  `dynamodbav:"PK"`
	SK             string  `dynamodbav:"SK"`
	EntityType     string  `dynamodbav:"entity_type"`
	SubjectID      string  `dynamodbav:"subject_id"`
	UserID         string  `dynamodbav:"user_id"`
	Name           string  `dynamodbav:"name"`
	Color          string  `dynamodbav:"color"`
	Description    *string `dynamodbav:"description,omitempty"`
	TotalDocuments int     `dynamodbav:"total_documents"`
	TotalPages     int     `dynamodbav:"total_pages"`
	CreatedAt      string  `dynamodbav:"created_at"`
	UpdatedAt      string  `dynamodbav:"updated_at"`
}

type documentRecord struct {
	PK               string  `dynamodbav:"PK"`
	SK               string  `dynamodbav:"SK"`
	EntityType       string  `dynamodbav:"entity_type"`
	DocumentID       string  `dynamodbav:"document_id"`
	SubjectID        string  `dynamodbav:"subject_id"`
	UserID           string  `dynamodbav:"user_id"`
	Title            string  `dynamodbav:"title"`
	ExtractedText    *string `dynamodbav:"extracted_text,omitempty"`
	OriginalFilename *string `dynamodbav:"original_filename,omitempty"`
	ImageURL         *string `dynamodbav:"image_url,omitempty"`
	ThumbnailURL     *string `dynamodbav:"thumbnail_url,omitempty"`
	FileSize         *int64  `dynamodbav:"file_size,omitempty"`
	Pages            int     `dynamodbav:"pages"`
	ReviewCount      int     `dynamodbav:"review_count"`
	ReviewCompleted  bool    `dynamodbav:"review_completed"`
	LastReviewedAt   *string `dynamodbav:"last_reviewed_at,omitempty"`
	NextReviewAt     *string `dynamodbav:"next_review_at,omitempty"`
	CreatedAt        string  `dynamodbav:"created_at"`
	UpdatedAt        string  `dynamodbav:"updated_at"`
}

// EncodeSubject converts a subject into a store item.
func EncodeSubject(s *domain.Subject) (store.Item, error) {
	key := subjectKey(s.UserID, s.SubjectID)
	rec := subjectRecord{
		PK:             key.PK,
		SK:             key.SK,
		EntityType:     domain.EntityTypeSubject,
		SubjectID:      s.SubjectID,
		UserID:         s.UserID,
		Name:           s.Name,
		Color:          s.Color,
		Description:    s.Description,
		TotalDocuments: s.TotalDocuments,
		TotalPages:     s.TotalPages,
		CreatedAt:      formatTime(s.CreatedAt),
		UpdatedAt:      formatTime(s.UpdatedAt),
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, appErrors.NewInternal("failed to encode subject", err)
	}
	return item, nil
}

// DecodeSubject validates item against the subject schema.
func DecodeSubject(item store.Item) (*domain.Subject, error) {
	var rec subjectRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, schemaError("subject", err.Error())
	}
	if rec.EntityType != "" && rec.EntityType != domain.EntityTypeSubject {
		return nil, schemaError("subject", "entity_type is "+rec.EntityType)
	}
	if rec.SubjectID == "" || rec.UserID == "" {
		return nil, schemaError("subject", "subject_id and user_id are required")
	}
	if err := domain.ValidateSubjectName(rec.Name); err != nil {
		return nil, schemaError("subject", err.Error())
	}
	if rec.TotalDocuments < 0 || rec.TotalPages < 0 {
		return nil, schemaError("subject", "statistics must not be negative")
	}
	createdAt, err := parseTime(rec.CreatedAt)
	if err != nil {
		return nil, schemaError("subject", "created_at: "+err.Error())
	}
	updatedAt, err := parseTime(rec.UpdatedAt)
	if err != nil {
		return nil, schemaError("subject", "updated_at: "+err.Error())
	}

	color := rec.Color
	if color == "" {
		color = domain.DefaultSubjectColor
	}
	return &domain.Subject{
		SubjectID:      rec.SubjectID,
		UserID:         rec.UserID,
		Name:           rec.Name,
		Color:          color,
		Description:    rec.Description,
		TotalDocuments: rec.TotalDocuments,
		TotalPages:     rec.TotalPages,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// EncodeDocument converts a document into a store item.
func EncodeDocument(d *domain.Document) (store.Item, error) {
	key := documentKey(d.SubjectID, d.DocumentID)
	rec := documentRecord{
		PK:               key.PK,
		SK:               key.SK,
		EntityType:       domain.EntityTypeDocument,
		DocumentID:       d.DocumentID,
		SubjectID:        d.SubjectID,
		UserID:           d.UserID,
		Title:            d.Title,
		ExtractedText:    d.ExtractedText,
		OriginalFilename: d.OriginalFilename,
		ImageURL:         d.ImageURL,
		ThumbnailURL:     d.ThumbnailURL,
		FileSize:         d.FileSize,
		Pages:            d.Pages,
		ReviewCount:      d.ReviewCount,
		ReviewCompleted:  d.ReviewCompleted,
		LastReviewedAt:   formatOptionalTime(d.LastReviewedAt),
		NextReviewAt:     formatOptionalTime(d.NextReviewAt),
		CreatedAt:        formatTime(d.CreatedAt),
		UpdatedAt:        formatTime(d.UpdatedAt),
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, appErrors.NewInternal("failed to encode document", err)
	}
	return item, nil
}

// DecodeDocument validates item against the document schema.
func DecodeDocument(item store.Item) (*domain.Document, error) {
	var rec documentRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, schemaError("document", err.Error())
	}
	if rec.EntityType != "" && rec.EntityType != domain.EntityTypeDocument {
		return nil, schemaError("document", "entity_type is "+rec.EntityType)
	}
	if rec.DocumentID == "" || rec.SubjectID == "" || rec.UserID == "" {
		return nil, schemaError("document", "document_id, subject_id and user_id are required")
	}
	if err := domain.ValidateDocumentTitle(rec.Title); err != nil {
		return nil, schemaError("document", err.Error())
	}
	if err := domain.ValidatePages(rec.Pages); err != nil {
		return nil, schemaError("document", err.Error())
	}
	if rec.ReviewCount < 0 {
		return nil, schemaError("document", "review_count must not be negative")
	}

	doc := &domain.Document{
		DocumentID:       rec.DocumentID,
		SubjectID:        rec.SubjectID,
		UserID:           rec.UserID,
		Title:            rec.Title,
		ExtractedText:    rec.ExtractedText,
		OriginalFilename: rec.OriginalFilename,
		ImageURL:         rec.ImageURL,
		ThumbnailURL:     rec.ThumbnailURL,
		FileSize:         rec.FileSize,
		Pages:            rec.Pages,
		ReviewCount:      rec.ReviewCount,
		ReviewCompleted:  rec.ReviewCompleted,
	}

	var err error
	if doc.CreatedAt, err = parseTime(rec.CreatedAt); err != nil {
		return nil, schemaError("document", "created_at: "+err.Error())
	}
	if doc.UpdatedAt, err = parseTime(rec.UpdatedAt); err != nil {
		return nil, schemaError("document", "updated_at: "+err.Error())
	}
	if doc.LastReviewedAt, err = parseOptionalTime(rec.LastReviewedAt); err != nil {
		return nil, schemaError("document", "last_reviewed_at: "+err.Error())
	}
	if doc.NextReviewAt, err = parseOptionalTime(rec.NextReviewAt); err != nil {
		return nil, schemaError("document", "next_review_at: "+err.Error())
	}
	return doc, nil
}

func schemaError(entity, reason string) error {
	return appErrors.NewValidation(fmt.Sprintf("stored %s does not match schema: %s", entity, reason)).
		WithCode("SCHEMA_MISMATCH")
}

// isEntity reports whether an index item belongs to entityType. Items
// written without entity_type are accepted so shared tables with older data
// still decode.
func isEntity(item store.Item, entityType string) bool {
	v, ok := store.StringAttr(item, attrEntityType)
	return !ok || v == entityType
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(domain.TimestampLayout)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// Layouts accepted on read. Items written by older clients carry naive ISO
// timestamps that are UTC by convention.
var readLayouts = []string{
	domain.TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// parseTime returns the zero time for an empty value.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	var firstErr error
	for _, layout := range readLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
