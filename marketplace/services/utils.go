package services

import (
	"errors"
	"fmt"
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/schema"
	"localfarmer/marketplace/storage"
	"localfarmer/utils"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

const maxMultipartMemory = 32 << 20

var (
	ErrUnauthorized     = errors.New("Unauthorized")
	ErrRatingRequired   = errors.New("Rating is required")
	ErrInvalidRating    = errors.New("Invalid rating value")
	ErrRatingOutOfRange = errors.New("Rating must be between 1 and 5")
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := GetResponseCode(err)
	if code == http.StatusInternalServerError {
		var cerr *codedError
		if !errors.As(err, &cerr) {
			err = schema.ErrDbAccessFailed
		}
	}
	utils.WriteError(w, err.Error(), code)
}

// lookupError maps the error of a schema.Get* helper to a response code.
func lookupError(err, notFound error) error {
	if errors.Is(err, notFound) {
		return CodedError(notFound, http.StatusNotFound)
	}
	return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
}

func dbError(msg string, err error, args ...interface{}) error {
	slog.Error(msg, append(args, "error", err)...)
	return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
}

func requireOwner(ownerId uint, user schema.User, message error) error {
	if ownerId != user.Id {
		return CodedError(message, http.StatusForbidden)
	}
	return nil
}

// requestUser returns the user installed by the api gate. Handlers behind the
// gate can rely on it being present.
func requestUser(w http.ResponseWriter, r *http.Request) (schema.User, bool) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusUnauthorized)
		return schema.User{}, false
	}
	return user, true
}

func userIdPtr(user schema.User, ok bool) *uint {
	if !ok {
		return nil
	}
	id := user.Id
	return &id
}

func checkDiskUsage(storage storage.Storage) error {
	stats, err := storage.Usage()
	if err != nil {
		slog.Error("unable to get disk usage from storage", "error", err)
		return CodedError(errors.New("unable to get disk usage"), http.StatusInternalServerError)
	}
	oneMib := uint64(1024 * 1024)
	// Either 20% disk needs to be free or 20Gb (in case the disk is very large)
	threshold := min(stats.TotalBytes/5, 20*1024*oneMib)
	if stats.FreeBytes < threshold {
		used := (stats.TotalBytes - stats.FreeBytes) / oneMib
		total := stats.TotalBytes / oneMib
		return CodedError(fmt.Errorf("insufficient disk space available, usage: %d/%d Mib", used, total), http.StatusInsufficientStorage)
	}
	return nil
}

func checkSufficientStorage(storage storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			if err := checkDiskUsage(storage); err != nil {
				slog.Error(err.Error())
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(handler)
	}
}

// parseForm accepts both multipart and url encoded bodies.
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	err := r.ParseMultipartForm(maxMultipartMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		slog.Error("error parsing form body", "error", err)
		utils.WriteError(w, fmt.Sprintf("error parsing form body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func formFiles(r *http.Request, field string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	return r.MultipartForm.File[field]
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

// parseRating validates a rating given as form text.
func parseRating(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, CodedError(ErrRatingRequired, http.StatusBadRequest)
	}
	rating, err := strconv.Atoi(value)
	if err != nil {
		return 0, CodedError(ErrInvalidRating, http.StatusBadRequest)
	}
	if rating < 1 || rating > 5 {
		return 0, CodedError(ErrRatingOutOfRange, http.StatusBadRequest)
	}
	return rating, nil
}

// parseJsonRating validates a rating decoded from a json body, where clients
// send either a number or a numeric string.
func parseJsonRating(value interface{}) (int, error) {
	switch v := value.(type) {
	case nil:
		return parseRating("")
	case float64:
		if v == 0 {
			return parseRating("")
		}
		return parseRating(strconv.Itoa(int(math.Trunc(v))))
	case string:
		return parseRating(v)
	case bool:
		if !v {
			return parseRating("")
		}
	}
	return 0, CodedError(ErrInvalidRating, http.StatusBadRequest)
}

func listIds[T any](items []T, id func(T) uint) []uint {
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, id(item))
	}
	return ids
}

func countRows(db *gorm.DB, model interface{}, query string, args ...interface{}) (int64, error) {
	var count int64
	result := db.Model(model).Where(query, args...).Count(&count)
	if result.Error != nil {
		return 0, dbError("sql error counting rows", result.Error)
	}
	return count, nil
}

// flexFloat decodes a json number or a numeric string. Form based clients
// send prices and quantities as strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" || text == "null" {
		*f = 0
		return nil
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid number %v", string(data))
	}
	*f = flexFloat(value)
	return nil
}
