// Package subject manages the lifecycle of subjects and keeps their derived
// statistics in step with their documents.
package subject

import (
	"context"
	"time"

	"github.com/1282saa/paperone/internal/domain"
	"github.com/1282saa/paperone/internal/events"
	"github.com/1282saa/paperone/internal/observability"
	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Repository is the subject persistence the service needs.
type Repository interface {
	Save(ctx context.Context, subject *domain.Subject) error
	Get(ctx context.Context, userID, subjectID string) (*domain.Subject, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Subject, error)
	Delete(ctx context.Context, userID, subjectID string) error
	NameExists(ctx context.Context, userID, name, excludeID string) (bool, error)
}

// DocumentRepository is the document access used by statistics and cascade
// delete.
type DocumentRepository interface {
	ListBySubject(ctx context.Context, subjectID string) ([]*domain.Document, error)
	Delete(ctx context.Context, subjectID, documentID string) error
}

// CreateInput carries the fields of a new subject.
type CreateInput struct {
	Name        string
	Color       *string
	Description *string
}

// DeleteReport describes how a cascade delete went.
type DeleteReport struct {
	DocumentsDeleted int
	DocumentsFailed  int
	SubjectDeleted   bool
}

// Service implements subject operations.
type Service struct {
	subjects  Repository
	documents DocumentRepository
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

// NewService creates a subject service. publisher and metrics may be nil.
func NewService(
	subjects Repository,
	documents DocumentRepository,
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
		subjects:  subjects,
		documents: documents,
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

// Create validates and stores a new subject. The name must be unique among
// the user's subjects.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*domain.Subject, error) {
	ctx, span := s.tracer.Start(ctx, "subject.Create", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if err := domain.ValidateSubjectName(in.Name); err != nil {
		return nil, err
	}
	color := domain.DefaultSubjectColor
	if in.Color != nil {
		if err := domain.ValidateSubjectColor(*in.Color); err != nil {
			return nil, err
		}
		color = *in.Color
	}

	if err := s.ensureUniqueName(ctx, userID, in.Name, ""); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	subject := &domain.Subject{
		SubjectID:   s.newID(),
		UserID:      userID,
		Name:        in.Name,
		Color:       color,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.subjects.Save(ctx, subject); err != nil {
		span.RecordError(err)
		return nil, appErrors.Wrap(err, "failed to create subject")
	}

	s.logger.Info("Subject created",
		zap.String("user_id", userID),
		zap.String("subject_id", subject.SubjectID),
	)
	return subject, nil
}

// Get returns one of the user's subjects.
func (s *Service) Get(ctx context.Context, userID, subjectID string) (*domain.Subject, error) {
	return s.subjects.Get(ctx, userID, subjectID)
}

// List returns all subjects of the user in index order.
func (s *Service) List(ctx context.Context, userID string) ([]*domain.Subject, error) {
	return s.subjects.ListByUser(ctx, userID)
}

// Update applies the set fields of upd. Name uniqueness is only checked when
// the name actually changes.
func (s *Service) Update(ctx context.Context, userID, subjectID string, upd domain.SubjectUpdate) (*domain.Subject, error) {
	ctx, span := s.tracer.Start(ctx, "subject.Update", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("subject.id", subjectID),
	))
	defer span.End()

	subject, err := s.subjects.Get(ctx, userID, subjectID)
	if err != nil {
		return nil, err
	}

	if name, ok := upd.Name.Get(); ok && name != subject.Name {
		if err := domain.ValidateSubjectName(name); err != nil {
			return nil, err
		}
		if err := s.ensureUniqueName(ctx, userID, name, subjectID); err != nil {
			return nil, err
		}
	}
	if err := upd.Apply(subject); err != nil {
		return nil, err
	}
	subject.UpdatedAt = s.now().UTC()

	if err := s.subjects.Save(ctx, subject); err != nil {
		span.RecordError(err)
		return nil, appErrors.Wrap(err, "failed to update subject")
	}
	return subject, nil
}

// Delete removes the subject's documents one by one and then the subject.
//
// The store has no cross-item transactions. Each child delete is attempted
// even if an earlier one failed. When any child could not be deleted the
// subject is kept, so the remaining documents stay reachable and the delete
// can be retried; the returned StorageError reports how many failed.
func (s *Service) Delete(ctx context.Context, userID, subjectID string) (*DeleteReport, error) {
	ctx, span := s.tracer.Start(ctx, "subject.Delete", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("subject.id", subjectID),
	))
	defer span.End()

	if _, err := s.subjects.Get(ctx, userID, subjectID); err != nil {
		return nil, err
	}

	docs, err := s.documents.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to list subject documents")
	}

	report := &DeleteReport{}
	var lastErr error
	for _, doc := range docs {
		if err := s.documents.Delete(ctx, subjectID, doc.DocumentID); err != nil {
			report.DocumentsFailed++
			lastErr = err
			s.logger.Warn("Cascade delete could not remove document",
				zap.String("user_id", userID),
				zap.String("subject_id", subjectID),
				zap.String("document_id", doc.DocumentID),
				zap.Error(err),
			)
			continue
		}
		report.DocumentsDeleted++
		s.metrics.DocumentDeleted()
	}

	span.SetAttributes(
		attribute.Int("documents.deleted", report.DocumentsDeleted),
		attribute.Int("documents.failed", report.DocumentsFailed),
	)

	if report.DocumentsFailed > 0 {
		s.metrics.CascadeDeleteFailed(report.DocumentsFailed)
		return report, appErrors.NewStorage("cascade delete", lastErr).
			WithCode("CASCADE_INCOMPLETE").
			WithDetails(map[string]interface{}{
				"documents_deleted": report.DocumentsDeleted,
				"documents_failed":  report.DocumentsFailed,
			})
	}

	if err := s.subjects.Delete(ctx, userID, subjectID); err != nil {
		span.RecordError(err)
		return report, appErrors.Wrap(err, "failed to delete subject")
	}
	report.SubjectDeleted = true

	s.logger.Info("Subject deleted",
		zap.String("user_id", userID),
		zap.String("subject_id", subjectID),
		zap.Int("documents_deleted", report.DocumentsDeleted),
	)
	events.BestEffort(ctx, s.publisher, s.logger, events.Event{
		Type:      events.TypeSubjectDeleted,
		UserID:    userID,
		SubjectID: subjectID,
		Timestamp: s.now().UTC(),
		Data:      map[string]interface{}{"documents_deleted": report.DocumentsDeleted},
	})
	return report, nil
}

// RecomputeStatistics re-derives the document count and page total of a
// subject from its current documents and stores them. Concurrent recomputes
// on one subject race; the last write wins.
func (s *Service) RecomputeStatistics(ctx context.Context, userID, subjectID string) (*domain.Subject, error) {
	ctx, span := s.tracer.Start(ctx, "subject.RecomputeStatistics", trace.WithAttributes(
		attribute.String("subject.id", subjectID),
	))
	defer span.End()

	subject, err := s.subjects.Get(ctx, userID, subjectID)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	pages := 0
	for _, d := range docs {
		pages += d.Pages
	}
	subject.TotalDocuments = len(docs)
	subject.TotalPages = pages
	subject.UpdatedAt = s.now().UTC()

	if err := s.subjects.Save(ctx, subject); err != nil {
		span.RecordError(err)
		return nil, appErrors.Wrap(err, "failed to store subject statistics")
	}

	s.logger.Debug("Subject statistics recomputed",
		zap.String("subject_id", subjectID),
		zap.Int("total_documents", subject.TotalDocuments),
		zap.Int("total_pages", subject.TotalPages),
	)
	return subject, nil
}

// NameMap returns subject id to name for the user.
func (s *Service) NameMap(ctx context.Context, userID string) (map[string]string, error) {
	subjects, err := s.subjects.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(subjects))
	for _, sub := range subjects {
		names[sub.SubjectID] = sub.Name
	}
	return names, nil
}

func (s *Service) ensureUniqueName(ctx context.Context, userID, name, excludeID string) error {
	exists, err := s.subjects.NameExists(ctx, userID, name, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return appErrors.NewConflict("a subject with this name already exists").
			WithDetails(map[string]interface{}{"name": name})
	}
	return nil
}
