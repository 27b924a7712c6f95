package media

import (
	"errors"
	"fmt"
	"localfarmer/marketplace/schema"
	"localfarmer/marketplace/storage"
	"localfarmer/utils/logging"
	"log/slog"
	"mime/multipart"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxImageSize = 10 * 1024 * 1024
	MaxVideoSize = 50 * 1024 * 1024
)

var (
	imageExtensions = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true}
	videoExtensions = map[string]bool{"mp4": true, "webm": true, "mov": true}
)

var (
	ErrInvalidFileType = errors.New("Invalid file type")
	ErrFileTooLarge    = errors.New("File too large")
	ErrNoFilename      = errors.New("No file selected")

	ErrInvalidAttachment = errors.New("Invalid attachment path")
)

// Allowed selects which media kinds a surface accepts.
type Allowed int

const (
	Images Allowed = 1 << iota
	Videos

	ImagesAndVideos = Images | Videos
)

func extension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

// KindOf classifies a filename by extension as image or video.
func KindOf(filename string) (string, error) {
	ext := extension(filename)
	switch {
	case imageExtensions[ext]:
		return schema.ImageMedia, nil
	case videoExtensions[ext]:
		return schema.VideoMedia, nil
	}
	return "", ErrInvalidFileType
}

func maxSize(kind string) int64 {
	if kind == schema.VideoMedia {
		return MaxVideoSize
	}
	return MaxImageSize
}

func (a Allowed) permits(kind string) bool {
	if kind == schema.ImageMedia {
		return a&Images != 0
	}
	return a&Videos != 0
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces an uploaded filename to a safe ascii basename.
func SecureFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = path.Base(filename)
	filename = strings.Join(strings.Fields(filename), "_")
	filename = unsafeFilenameChars.ReplaceAllString(filename, "")
	filename = strings.TrimLeft(filename, "._")
	if filename == "" || filename == "." {
		return ""
	}
	return filename
}

type Saved struct {
	Kind     string
	Url      string
	Filename string
	Size     int64
}

type Ingestor struct {
	store storage.Storage
	now   func() time.Time
}

func NewIngestor(store storage.Storage) *Ingestor {
	return &Ingestor{store: store, now: time.Now}
}

// FileError describes why one file of a batch was rejected.
type FileError struct {
	Filename string
	Err      error
	Kind     string
}

func (e *FileError) Error() string {
	switch {
	case errors.Is(e.Err, ErrFileTooLarge):
		return fmt.Sprintf("%v: File too large. Max %dMB for %vs", e.Filename, maxSize(e.Kind)/(1024*1024), e.Kind)
	case errors.Is(e.Err, ErrInvalidFileType):
		return fmt.Sprintf("%v: Invalid file type. Allowed: JPG, PNG, WEBP, MP4, WEBM", e.Filename)
	}
	return fmt.Sprintf("%v: %v", e.Filename, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

func (i *Ingestor) storedName(prefix, filename string) string {
	timestamp := i.now().Format("20060102_150405.000000")
	timestamp = strings.Replace(timestamp, ".", "_", 1)
	return fmt.Sprintf("%v_%v_%v_%v", prefix, timestamp, uuid.NewString()[:8], filename)
}

// Save validates and stores one uploaded file under dir. The returned url is
// the public path the file is served from.
func (i *Ingestor) Save(fh *multipart.FileHeader, dir, prefix string, allowed Allowed) (Saved, error) {
	if fh == nil || fh.Filename == "" {
		return Saved{}, ErrNoFilename
	}

	kind, err := KindOf(fh.Filename)
	if err != nil || !allowed.permits(kind) {
		return Saved{}, &FileError{Filename: fh.Filename, Err: ErrInvalidFileType}
	}

	if fh.Size > maxSize(kind) {
		return Saved{}, &FileError{Filename: fh.Filename, Err: ErrFileTooLarge, Kind: kind}
	}

	filename := SecureFilename(fh.Filename)
	if filename == "" {
		filename = "upload." + extension(fh.Filename)
	}

	name := i.storedName(prefix, filename)

	file, err := fh.Open()
	if err != nil {
		slog.Error("error opening uploaded file", "filename", fh.Filename, "error", err, "code", logging.MEDIA_UPLOAD)
		return Saved{}, &FileError{Filename: fh.Filename, Err: errors.New("unable to read file")}
	}
	defer file.Close()

	if err := i.store.Write(path.Join(storage.UploadsDir, dir, name), file); err != nil {
		return Saved{}, &FileError{Filename: fh.Filename, Err: errors.New("unable to store file")}
	}

	slog.Info("stored upload", "dir", dir, "name", name, "size", fh.Size, "code", logging.MEDIA_UPLOAD)

	return Saved{
		Kind:     kind,
		Url:      path.Join(storage.PublicUrlRoot, dir, name),
		Filename: filename,
		Size:     fh.Size,
	}, nil
}

// SaveAll stores every acceptable file and reports the rest. A rejected file
// never aborts the batch.
func (i *Ingestor) SaveAll(files []*multipart.FileHeader, dir, prefix string, allowed Allowed) ([]Saved, []string) {
	saved := make([]Saved, 0, len(files))
	errs := make([]string, 0)
	for _, fh := range files {
		if fh == nil || fh.Filename == "" {
			continue
		}
		s, err := i.Save(fh, dir, prefix, allowed)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		saved = append(saved, s)
	}
	return saved, errs
}

var uploadDirs = []string{
	storage.ProfilesDir, storage.ProductsDir, storage.FeedbackDir, storage.RentalsDir, storage.LivePricesDir,
}

// storedPath maps a public url onto its storage path. Only clean urls naming a
// file directly inside one of dirs qualify.
func storedPath(url string, dirs ...string) (string, bool) {
	if path.Clean(url) != url {
		return "", false
	}
	for _, dir := range dirs {
		root := storage.PublicUrlRoot + "/" + dir + "/"
		if !strings.HasPrefix(url, root) {
			continue
		}
		name := strings.TrimPrefix(url, root)
		if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
			return "", false
		}
		return path.Join(storage.UploadsDir, dir, name), true
	}
	return "", false
}

// CheckOwned verifies that every url names an existing upload in dir whose
// stored name starts with prefix.
func (i *Ingestor) CheckOwned(urls []string, dir, prefix string) error {
	for _, url := range urls {
		stored, ok := storedPath(url, dir)
		if !ok || !strings.HasPrefix(path.Base(stored), prefix+"_") {
			return fmt.Errorf("%w: %v", ErrInvalidAttachment, url)
		}
		if isFile, err := i.store.IsFile(stored); err != nil || !isFile {
			return fmt.Errorf("%w: %v", ErrInvalidAttachment, url)
		}
	}
	return nil
}

// Remove deletes a previously saved file given its public url. Urls outside
// the uploads tree are ignored; urls inside it that do not name a stored file
// are refused.
func (i *Ingestor) Remove(url string) error {
	if !strings.HasPrefix(url, storage.PublicUrlRoot+"/") {
		return nil
	}

	stored, ok := storedPath(url, uploadDirs...)
	if !ok {
		slog.Warn("refusing to remove upload", "url", url, "code", logging.MEDIA_DELETE)
		return fmt.Errorf("%w: %v", ErrInvalidAttachment, url)
	}

	isFile, err := i.store.IsFile(stored)
	if err != nil {
		return err
	}
	if !isFile {
		return nil
	}

	if err := i.store.Delete(stored); err != nil {
		slog.Error("error removing upload", "url", url, "error", err, "code", logging.MEDIA_DELETE)
		return err
	}
	return nil
}

// Urls splits saved files into image and video urls.
func Urls(saved []Saved) ([]string, []string) {
	images, videos := []string{}, []string{}
	for _, s := range saved {
		if s.Kind == schema.VideoMedia {
			videos = append(videos, s.Url)
		} else {
			images = append(images, s.Url)
		}
	}
	return images, videos
}
