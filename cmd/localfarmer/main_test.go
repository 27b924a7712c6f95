package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"localfarmer/marketplace/storage"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadsHandlerHidesDirectories(t *testing.T) {
	shareDir := t.TempDir()
	products := filepath.Join(shareDir, storage.UploadsDir, storage.ProductsDir)
	require.NoError(t, os.MkdirAll(products, 0777))
	require.NoError(t, os.WriteFile(filepath.Join(products, "product_1_a.jpg"), []byte("jpeg"), 0666))

	r := chi.NewRouter()
	r.Handle(storage.PublicUrlRoot+"/*", uploadsHandler(shareDir))

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/static/uploads/products/product_1_a.jpg")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg", w.Body.String())

	for _, path := range []string{
		"/static/uploads/",
		"/static/uploads/products/",
		"/static/uploads/products",
		"/static/uploads/products/missing.jpg",
	} {
		w := get(path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.NotContains(t, w.Body.String(), "product_1_a.jpg", path)
	}
}
