package media

import (
	"bytes"
	"errors"
	"localfarmer/marketplace/storage"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fileHeaders(t *testing.T, field string, files map[string]int) []*multipart.FileHeader {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for name, size := range files {
		part, err := writer.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(bytes.Repeat([]byte("a"), size)); err != nil {
			t.Fatal(err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatal(err)
	}
	return req.MultipartForm.File[field]
}

func TestSecureFilename(t *testing.T) {
	assert.Equal(t, "photo.png", SecureFilename("photo.png"))
	assert.Equal(t, "passwd", SecureFilename("../../etc/passwd"))
	assert.Equal(t, "evil.jpg", SecureFilename(`C:\Users\x\evil.jpg`))
	assert.Equal(t, "my_crop_photo.jpg", SecureFilename("my crop photo.jpg"))
	assert.Equal(t, "hidden.png", SecureFilename(".hidden.png"))
	assert.Equal(t, "", SecureFilename("..."))
}

func TestKindOf(t *testing.T) {
	kind, err := KindOf("a.JPEG")
	assert.NoError(t, err)
	assert.Equal(t, "image", kind)

	kind, err = KindOf("clip.mov")
	assert.NoError(t, err)
	assert.Equal(t, "video", kind)

	_, err = KindOf("notes.txt")
	assert.True(t, errors.Is(err, ErrInvalidFileType))

	_, err = KindOf("noextension")
	assert.True(t, errors.Is(err, ErrInvalidFileType))
}

func TestSaveNamesAndStoresFile(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())
	ingestor := NewIngestor(store)
	ingestor.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 123456000, time.UTC) }

	files := fileHeaders(t, "file", map[string]int{"tractor photo.png": 10})

	saved, err := ingestor.Save(files[0], storage.RentalsDir, "rental_4", Images)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "image", saved.Kind)
	assert.Equal(t, "tractor_photo.png", saved.Filename)
	assert.True(t, strings.HasPrefix(saved.Url, "/static/uploads/rentals/rental_4_20240506_070809_123456_"), saved.Url)
	assert.True(t, strings.HasSuffix(saved.Url, "_tractor_photo.png"))

	exists, err := store.Exists("uploads/rentals/" + strings.TrimPrefix(saved.Url, "/static/uploads/rentals/"))
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, exists)

	if err := ingestor.Remove(saved.Url); err != nil {
		t.Fatal(err)
	}
	exists, err = store.Exists("uploads/rentals/" + strings.TrimPrefix(saved.Url, "/static/uploads/rentals/"))
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, exists)
}

func TestSaveRejectsDisallowedKind(t *testing.T) {
	ingestor := NewIngestor(storage.NewSharedDisk(t.TempDir()))

	files := fileHeaders(t, "file", map[string]int{"clip.mp4": 10})

	_, err := ingestor.Save(files[0], storage.ProfilesDir, "profile_1", Images)
	assert.True(t, errors.Is(err, ErrInvalidFileType))
	assert.Equal(t, "clip.mp4: Invalid file type. Allowed: JPG, PNG, WEBP, MP4, WEBM", err.Error())
}

func TestSaveAllPartialFailure(t *testing.T) {
	ingestor := NewIngestor(storage.NewSharedDisk(t.TempDir()))

	files := fileHeaders(t, "media", map[string]int{
		"good.jpg":  100,
		"bad.exe":   100,
		"clip.webm": 100,
	})

	saved, errs := ingestor.SaveAll(files, storage.RentalsDir, "rental_1", ImagesAndVideos)
	assert.Len(t, saved, 2)
	assert.Equal(t, []string{"bad.exe: Invalid file type. Allowed: JPG, PNG, WEBP, MP4, WEBM"}, errs)

	images, videos := Urls(saved)
	assert.Len(t, images, 1)
	assert.Len(t, videos, 1)
}

func TestFileTooLargeMessage(t *testing.T) {
	err := &FileError{Filename: "big.mp4", Err: ErrFileTooLarge, Kind: "video"}
	assert.Equal(t, "big.mp4: File too large. Max 50MB for videos", err.Error())

	err = &FileError{Filename: "big.png", Err: ErrFileTooLarge, Kind: "image"}
	assert.Equal(t, "big.png: File too large. Max 10MB for images", err.Error())
}

func TestRemoveIgnoresForeignUrls(t *testing.T) {
	ingestor := NewIngestor(storage.NewSharedDisk(t.TempDir()))
	assert.NoError(t, ingestor.Remove("https://example.com/a.png"))
}

func TestStoredPath(t *testing.T) {
	stored, ok := storedPath("/static/uploads/products/product_3_a.jpg", storage.ProductsDir)
	assert.True(t, ok)
	assert.Equal(t, "uploads/products/product_3_a.jpg", stored)

	for _, url := range []string{
		"/static/uploads/..",
		"/static/uploads/products/",
		"/static/uploads/products/..",
		"/static/uploads/products/../profiles/p.jpg",
		"/static/uploads/products/nested/a.jpg",
		"/static/uploads/profiles/p.jpg",
		"/static/uploads/products//a.jpg",
	} {
		_, ok := storedPath(url, storage.ProductsDir)
		assert.False(t, ok, url)
	}
}

func TestCheckOwned(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())
	ingestor := NewIngestor(store)

	for _, name := range []string{"product_3_a.jpg", "product_4_b.jpg"} {
		if err := store.Write("uploads/products/"+name, strings.NewReader("x")); err != nil {
			t.Fatal(err)
		}
	}

	assert.NoError(t, ingestor.CheckOwned([]string{"/static/uploads/products/product_3_a.jpg"}, storage.ProductsDir, "product_3"))
	assert.NoError(t, ingestor.CheckOwned(nil, storage.ProductsDir, "product_3"))

	for _, url := range []string{
		"/static/uploads/products/product_4_b.jpg",
		"/static/uploads/products/product_3_missing.jpg",
		"/static/uploads/..",
		"https://example.com/a.jpg",
	} {
		err := ingestor.CheckOwned([]string{url}, storage.ProductsDir, "product_3")
		assert.True(t, errors.Is(err, ErrInvalidAttachment), url)
	}
}

func TestRemoveStaysInsideUploadDirs(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())
	ingestor := NewIngestor(store)

	for _, p := range []string{"uploads/profiles/victim.jpg", "logs/localfarmer.log"} {
		if err := store.Write(p, strings.NewReader("x")); err != nil {
			t.Fatal(err)
		}
	}

	for _, url := range []string{"/static/uploads/..", "/static/uploads/profiles", "/static/uploads/profiles/../../logs/localfarmer.log"} {
		assert.True(t, errors.Is(ingestor.Remove(url), ErrInvalidAttachment), url)
	}
	for _, p := range []string{"uploads/profiles/victim.jpg", "logs/localfarmer.log"} {
		exists, err := store.Exists(p)
		assert.NoError(t, err)
		assert.True(t, exists, p)
	}

	assert.NoError(t, ingestor.Remove("/static/uploads/profiles/victim.jpg"))
	exists, err := store.Exists("uploads/profiles/victim.jpg")
	assert.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, ingestor.Remove("/static/uploads/profiles/victim.jpg"))
}
