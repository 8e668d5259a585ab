package repository

import (
	"context"

	"github.com/1282saa/paperone/internal/domain"
	"github.com/1282saa/paperone/internal/store"
	appErrors "github.com/1282saa/paperone/pkg/errors"

	"go.uber.org/zap"
)

// DocumentRepository stores documents under SUBJECT#{subject_id} /
// DOCUMENT#{document_id}, reachable by user and by subject through indexes.
type DocumentRepository struct {
	store        store.Store
	userIndex    string
	subjectIndex string
	logger       *zap.Logger
}

// NewDocumentRepository creates a repository over a documents table store.
func NewDocumentRepository(s store.Store, userIndex, subjectIndex string, logger *zap.Logger) *DocumentRepository {
	if userIndex == "" {
		userIndex = DefaultUserIndex
	}
	if subjectIndex == "" {
		subjectIndex = DefaultSubjectIndex
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentRepository{store: s, userIndex: userIndex, subjectIndex: subjectIndex, logger: logger}
}

// Save writes the whole document, creating or replacing it.
func (r *DocumentRepository) Save(ctx context.Context, doc *domain.Document) error {
	item, err := EncodeDocument(doc)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, item)
}

// Get loads a document by its primary key.
func (r *DocumentRepository) Get(ctx context.Context, subjectID, documentID string) (*domain.Document, error) {
	item, err := r.store.Get(ctx, documentKey(subjectID, documentID))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, appErrors.NewNotFound("document not found")
	}
	return DecodeDocument(item)
}

// ListBySubject returns a subject's documents newest first.
func (r *DocumentRepository) ListBySubject(ctx context.Context, subjectID string) ([]*domain.Document, error) {
	return r.query(ctx, store.KeyCondition{
		Index:          r.subjectIndex,
		PartitionAttr:  attrSubjectID,
		PartitionValue: subjectID,
	})
}

// ListByUser returns every document of a user newest first.
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Document, error) {
	return r.query(ctx, store.KeyCondition{
		Index:          r.userIndex,
		PartitionAttr:  attrUserID,
		PartitionValue: userID,
	})
}

// FindForUser locates a document when only its id is known by scanning the
// user's document index.
func (r *DocumentRepository) FindForUser(ctx context.Context, userID, documentID string) (*domain.Document, error) {
	docs, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.DocumentID == documentID {
			return d, nil
		}
	}
	return nil, appErrors.NewNotFound("document not found")
}

// Delete removes a document. Deleting a missing document is not an error.
func (r *DocumentRepository) Delete(ctx context.Context, subjectID, documentID string) error {
	return r.store.Delete(ctx, documentKey(subjectID, documentID))
}

func (r *DocumentRepository) query(ctx context.Context, cond store.KeyCondition) ([]*domain.Document, error) {
	items, err := r.store.Query(ctx, cond, false)
	if err != nil {
		return nil, err
	}

	docs := make([]*domain.Document, 0, len(items))
	for _, item := range items {
		if !isEntity(item, domain.EntityTypeDocument) {
			continue
		}
		doc, err := DecodeDocument(item)
		if err != nil {
			r.logger.Error("Malformed document item",
				zap.String("index", cond.Index),
				zap.String("partition", cond.PartitionValue),
				zap.Error(err),
			)
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
