package services

import (
	"errors"
	"fmt"
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/media"
	"localfarmer/marketplace/storage"
	"localfarmer/utils"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
)

var ErrNoFileProvided = errors.New("No file provided")

type UploadService struct {
	storage  storage.Storage
	ingestor *media.Ingestor
	userAuth auth.IdentityProvider
}

func (s *UploadService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(checkSufficientStorage(s.storage))

		r.Post("/", s.Upload)
	})

	return r
}

type uploadResponse struct {
	utils.Status
	Url string `json:"url"`
}

// singleFile returns the one file sent in field.
func singleFile(w http.ResponseWriter, r *http.Request, field string) (*multipart.FileHeader, bool) {
	if !parseForm(w, r) {
		return nil, false
	}
	files := formFiles(r, field)
	if len(files) == 0 {
		utils.WriteError(w, ErrNoFileProvided.Error(), http.StatusBadRequest)
		return nil, false
	}
	return files[0], true
}

// uploadError maps a media.Ingestor failure to a response.
func uploadError(err error) error {
	if errors.Is(err, media.ErrNoFilename) {
		return CodedError(err, http.StatusBadRequest)
	}
	if errors.Is(err, media.ErrInvalidFileType) {
		return CodedError(media.ErrInvalidFileType, http.StatusBadRequest)
	}
	if errors.Is(err, media.ErrFileTooLarge) {
		return CodedError(err, http.StatusBadRequest)
	}
	return CodedError(fmt.Errorf("unable to save file: %w", err), http.StatusInternalServerError)
}

// uploadPrefix names the files a user stores through /upload. Listings may
// only attach files carrying their owner's prefix.
func uploadPrefix(userId uint) string {
	return fmt.Sprintf("product_%d", userId)
}

func (s *UploadService) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	file, ok := singleFile(w, r, "file")
	if !ok {
		return
	}

	saved, err := s.ingestor.Save(file, storage.ProductsDir, uploadPrefix(user.Id), media.Images)
	if err != nil {
		writeError(w, uploadError(err))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, uploadResponse{Status: utils.Success(""), Url: saved.Url})
}
