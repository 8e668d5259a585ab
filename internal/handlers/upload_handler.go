package handlers

import (
	"errors"
	"net/http"

	"github.com/1282saa/paperone/internal/blob"
	"github.com/1282saa/paperone/pkg/api"
	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/docker/go-units"
	"go.uber.org/zap"
)

// multipartOverhead is allowed on top of the file limit for form framing.
const multipartOverhead = 1 * units.MiB

// UploadHandler serves POST /subjects/upload-image.
type UploadHandler struct {
	uploader     *blob.Uploader
	logger       *zap.Logger
	errorHandler *appErrors.ErrorHandler
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploader *blob.Uploader, logger *zap.Logger, errorHandler *appErrors.ErrorHandler) *UploadHandler {
	return &UploadHandler{uploader: uploader, logger: logger, errorHandler: errorHandler}
}

// UploadImageResponse is returned after a successful upload.
type UploadImageResponse struct {
	ImageURL string `json:"image_url"`
}

// UploadImage stores the multipart "file" field and returns its public URL.
func (h *UploadHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.uploader.MaxSize()+multipartOverhead)
	if err := r.ParseMultipartForm(8 * units.MiB); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = appErrors.NewValidation("file size must not exceed " + units.BytesSize(float64(h.uploader.MaxSize()))).
				WithCode("FILE_TOO_LARGE")
		} else {
			err = appErrors.NewValidation("invalid multipart form: " + err.Error())
		}
		h.errorHandler.Handle(w, r, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.Handle(w, r, appErrors.NewValidation("file is required"))
		return
	}
	defer file.Close()

	url, err := h.uploader.Upload(r.Context(), blob.Upload{
		OwnerID:      uid,
		Filename:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		DeclaredSize: header.Size,
		Body:         file,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, UploadImageResponse{ImageURL: url})
}
