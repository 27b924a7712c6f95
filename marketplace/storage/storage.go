package storage

import "io"

type UsageStats struct {
	TotalBytes uint64
	FreeBytes  uint64
}

type Storage interface {
	Read(path string) (io.ReadCloser, error)

	Write(path string, data io.Reader) error

	Delete(path string) error

	List(path string) ([]string, error)

	Exists(path string) (bool, error)

	// IsFile reports whether path is a regular file. Missing paths are not.
	IsFile(path string) (bool, error)

	Size(path string) (int64, error)

	Usage() (UsageStats, error)

	Location() string
}

// Upload directories relative to the storage root.
const (
	UploadsDir    = "uploads"
	ProfilesDir   = "profiles"
	ProductsDir   = "products"
	FeedbackDir   = "feedback"
	RentalsDir    = "rentals"
	LivePricesDir = "live_prices"
	PublicUrlRoot = "/static/uploads"
)
