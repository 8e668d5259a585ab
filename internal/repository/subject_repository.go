package repository

import (
	"context"

	"github.com/1282saa/paperone/internal/domain"
	"github.com/1282saa/paperone/internal/store"
	appErrors "github.com/1282saa/paperone/pkg/errors"

	"go.uber.org/zap"
)

// SubjectRepository stores subjects under USER#{user_id} / SUBJECT#{subject_id}.
type SubjectRepository struct {
	store     store.Store
	userIndex string
	logger    *zap.Logger
}

// NewSubjectRepository creates a repository over a subjects table store.
func NewSubjectRepository(s store.Store, userIndex string, logger *zap.Logger) *SubjectRepository {
	if userIndex == "" {
		userIndex = DefaultUserIndex
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectRepository{store: s, userIndex: userIndex, logger: logger}
}

// Save writes the whole subject, creating or replacing it.
func (r *SubjectRepository) Save(ctx context.Context, subject *domain.Subject) error {
	item, err := EncodeSubject(subject)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, item)
}

// Get loads one subject. A missing subject is a NotFound error.
func (r *SubjectRepository) Get(ctx context.Context, userID, subjectID string) (*domain.Subject, error) {
	item, err := r.store.Get(ctx, subjectKey(userID, subjectID))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, appErrors.NewNotFound("subject not found")
	}
	return DecodeSubject(item)
}

// ListByUser returns the user's subjects newest first.
func (r *SubjectRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Subject, error) {
	items, err := r.store.Query(ctx, store.KeyCondition{
		Index:          r.userIndex,
		PartitionAttr:  attrUserID,
		PartitionValue: userID,
	}, false)
	if err != nil {
		return nil, err
	}

	subjects := make([]*domain.Subject, 0, len(items))
	for _, item := range items {
		if !isEntity(item, domain.EntityTypeSubject) {
			continue
		}
		subject, err := DecodeSubject(item)
		if err != nil {
			r.logger.Error("Malformed subject item",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			return nil, err
		}
		subjects = append(subjects, subject)
	}
	return subjects, nil
}

// Delete removes a subject. Deleting a missing subject is not an error.
func (r *SubjectRepository) Delete(ctx context.Context, userID, subjectID string) error {
	return r.store.Delete(ctx, subjectKey(userID, subjectID))
}

// NameExists scans the user's subjects for name, ignoring excludeID. The
// store has no unique constraint, so the check and a following write are
// not atomic.
func (r *SubjectRepository) NameExists(ctx context.Context, userID, name, excludeID string) (bool, error) {
	subjects, err := r.ListByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, s := range subjects {
		if excludeID != "" && s.SubjectID == excludeID {
			continue
		}
		if s.Name == name {
			return true, nil
		}
	}
	return false, nil
}
