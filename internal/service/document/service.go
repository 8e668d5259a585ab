// Package document implements the document lifecycle: ownership checks,
// subject statistics upkeep, review state, due reviews and AI correction.
package document

import (
	"context"
	"time"

	"github.com/1282saa/paperone/internal/domain"
	"github.com/1282saa/paperone/internal/events"
	"github.com/1282saa/paperone/internal/generation"
	"github.com/1282saa/paperone/internal/observability"
	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Repository is the document persistence the service needs.
type Repository interface {
	Save(ctx context.Context, doc *domain.Document) error
	Get(ctx context.Context, subjectID, documentID string) (*domain.Document, error)
	FindForUser(ctx context.Context, userID, documentID string) (*domain.Document, error)
	ListBySubject(ctx context.Context, subjectID string) ([]*domain.Document, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Document, error)
	Delete(ctx context.Context, subjectID, documentID string) error
}

// Subjects is the subject side the document service depends on.
type Subjects interface {
	Get(ctx context.Context, userID, subjectID string) (*domain.Subject, error)
	RecomputeStatistics(ctx context.Context, userID, subjectID string) (*domain.Subject, error)
	NameMap(ctx context.Context, userID string) (map[string]string, error)
}

// Service implements document operations.
type Service struct {
	documents Repository
	subjects  Subjects
	backend   generation.Backend
	fallback  *generation.TableFallback
	publisher events.Publisher
	metrics   *observability.Collector
	tracer    trace.Tracer
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the id source.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a document service. fallback, publisher and metrics
// may be nil.
func NewService(
	documents Repository,
	subjects Subjects,
	backend generation.Backend,
	fallback *generation.TableFallback,
	publisher events.Publisher,
	metrics *observability.Collector,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		documents: documents,
		subjects:  subjects,
		backend:   backend,
		fallback:  fallback,
		publisher: publisher,
		metrics:   metrics,
		tracer:    observability.Tracer(),
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a document in one of the user's subjects and refreshes the
// subject statistics.
func (s *Service) Create(ctx context.Context, userID string, in domain.NewDocument) (*domain.Document, error) {
	ctx, span := s.tracer.Start(ctx, "document.Create", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("subject.id", in.SubjectID),
	))
	defer span.End()

	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.subjects.Get(ctx, userID, in.SubjectID); err != nil {
		return nil, err
	}

	pages := domain.DefaultDocumentPages
	if in.Pages != nil {
		pages = *in.Pages
	}
	now := s.now().UTC()
	doc := &domain.Document{
		DocumentID:       s.newID(),
		SubjectID:        in.SubjectID,
		UserID:           userID,
		Title:            in.Title,
		ExtractedText:    in.ExtractedText,
		OriginalFilename: in.OriginalFilename,
		ImageURL:         in.ImageURL,
		ThumbnailURL:     in.ThumbnailURL,
		FileSize:         in.FileSize,
		Pages:            pages,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.documents.Save(ctx, doc); err != nil {
		span.RecordError(err)
		return nil, appErrors.Wrap(err, "failed to create document")
	}
	s.metrics.DocumentCreated()

	s.recompute(ctx, userID, doc.SubjectID)
	s.publish(ctx, events.TypeDocumentCreated, doc, map[string]interface{}{"pages": doc.Pages})

	s.logger.Info("Document created",
		zap.String("user_id", userID),
		zap.String("subject_id", doc.SubjectID),
		zap.String("document_id", doc.DocumentID),
	)
	return doc, nil
}

// Get returns a document the user owns. With subjectID the document is read
// by key; without it the user's documents are scanned.
func (s *Service) Get(ctx context.Context, userID, documentID, subjectID string) (*domain.Document, error) {
	var (
		doc *domain.Document
		err error
	)
	if subjectID != "" {
		doc, err = s.documents.Get(ctx, subjectID, documentID)
	} else {
		doc, err = s.documents.FindForUser(ctx, userID, documentID)
	}
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, appErrors.NewForbidden("document belongs to another user")
	}
	return doc, nil
}

// ListBySubject returns the documents of one of the user's subjects.
func (s *Service) ListBySubject(ctx context.Context, userID, subjectID string) ([]*domain.Document, error) {
	if _, err := s.subjects.Get(ctx, userID, subjectID); err != nil {
		return nil, err
	}
	return s.documents.ListBySubject(ctx, subjectID)
}

// Update applies the set fields of upd. Statistics are only recomputed when
// the page count changed.
func (s *Service) Update(ctx context.Context, userID, documentID string, upd domain.DocumentUpdate) (*domain.Document, error) {
	ctx, span := s.tracer.Start(ctx, "document.Update", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("document.id", documentID),
	))
	defer span.End()

	doc, err := s.Get(ctx, userID, documentID, "")
	if err != nil {
		return nil, err
	}
	pagesChanged, err := upd.Apply(doc)
	if err != nil {
		return nil, err
	}
	doc.UpdatedAt = s.now().UTC()

	if err := s.documents.Save(ctx, doc); err != nil {
		span.RecordError(err)
		return nil, appErrors.Wrap(err, "failed to update document")
	}
	if pagesChanged {
		s.recompute(ctx, userID, doc.SubjectID)
	}
	s.publish(ctx, events.TypeDocumentUpdated, doc, map[string]interface{}{"pages_changed": pagesChanged})
	return doc, nil
}

// Delete removes a document and refreshes the subject statistics.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	ctx, span := s.tracer.Start(ctx, "document.Delete", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("document.id", documentID),
	))
	defer span.End()

	doc, err := s.Get(ctx, userID, documentID, "")
	if err != nil {
		return err
	}
	if err := s.documents.Delete(ctx, doc.SubjectID, doc.DocumentID); err != nil {
		span.RecordError(err)
		return appErrors.Wrap(err, "failed to delete document")
	}
	s.metrics.DocumentDeleted()

	s.recompute(ctx, userID, doc.SubjectID)
	s.publish(ctx, events.TypeDocumentDeleted, doc, nil)
	return nil
}

// ToggleReview flips the document between pending and completed.
func (s *Service) ToggleReview(ctx context.Context, userID, documentID string) (*domain.Document, error) {
	doc, err := s.Get(ctx, userID, documentID, "")
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	doc.ToggleReview(now)
	doc.UpdatedAt = now
	if err := s.documents.Save(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, "failed to update review state")
	}
	if doc.ReviewCompleted {
		s.metrics.ReviewCompleted()
	}

	s.publish(ctx, events.TypeDocumentReviewToggled, doc, map[string]interface{}{
		"review_completed": doc.ReviewCompleted,
		"review_count":     doc.ReviewCount,
	})
	return doc, nil
}

// DueReviews returns the user's pending documents due today and overdue.
func (s *Service) DueReviews(ctx context.Context, userID string) (domain.DueReviews, error) {
	docs, err := s.documents.ListByUser(ctx, userID)
	if err != nil {
		return domain.DueReviews{}, err
	}
	if len(docs) == 0 {
		return ComputeDueReviews(nil, nil, s.now()), nil
	}
	names, err := s.subjects.NameMap(ctx, userID)
	if err != nil {
		return domain.DueReviews{}, err
	}
	return ComputeDueReviews(docs, names, s.now()), nil
}

// recompute refreshes subject statistics after a document write. The write
// has already happened, so a failure here is logged and the statistics stay
// stale until the next mutation of the subject.
func (s *Service) recompute(ctx context.Context, userID, subjectID string) {
	if _, err := s.subjects.RecomputeStatistics(ctx, userID, subjectID); err != nil {
		s.logger.Error("Subject statistics recompute failed",
			zap.String("user_id", userID),
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, doc *domain.Document, data map[string]interface{}) {
	events.BestEffort(ctx, s.publisher, s.logger, events.Event{
		Type:       eventType,
		UserID:     doc.UserID,
		SubjectID:  doc.SubjectID,
		DocumentID: doc.DocumentID,
		Timestamp:  s.now().UTC(),
		Data:       data,
	})
}
