package blob

import (
	"context"
	"fmt"
	"io"
	"strconv"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStorageAPI is the part of the Supabase storage client the store
// uses.
type SupabaseStorageAPI interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// SupabaseStore writes objects to a public Supabase Storage bucket.
type SupabaseStore struct {
	client SupabaseStorageAPI
	bucket string
}

// NewSupabaseStore creates a store for bucket.
func NewSupabaseStore(client SupabaseStorageAPI, bucket string) *SupabaseStore {
	return &SupabaseStore{client: client, bucket: bucket}
}

// Put uploads data. The storage client has no context support, so ctx is
// only checked before the call.
func (s *SupabaseStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cacheControl := strconv.Itoa(CacheMaxAge)
	upsert := false
	_, err := s.client.UploadFile(s.bucket, key, reader(data), storage_go.FileOptions{
		CacheControl: &cacheControl,
		ContentType:  &contentType,
		Upsert:       &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.client.GetPublicUrl(s.bucket, key).SignedURL, nil
}
