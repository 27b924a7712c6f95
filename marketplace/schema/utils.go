package schema

import (
	"errors"
	"log/slog"
	"math"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound         = errors.New("User not found")
	ErrProductNotFound      = errors.New("Product not found")
	ErrRentalNotFound       = errors.New("Rental item not found")
	ErrFeedbackNotFound     = errors.New("Feedback not found")
	ErrMediaNotFound        = errors.New("Media not found")
	ErrNotificationNotFound = errors.New("Notification not found")
	ErrHistoryNotFound      = errors.New("History entry not found")
	ErrLivePriceNotFound    = errors.New("Price post not found or expired")
	ErrSchemeNotFound       = errors.New("Scheme not found")
	ErrSavedItemNotFound    = errors.New("Saved item not found")
	ErrDbAccessFailed       = errors.New("db access failed")
)

const uniqueViolationCode = "23505"

// IsDuplicateKey reports whether err comes from a unique constraint. The
// sqlite driver is translated by gorm, postgres errors are checked by code.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}

func GetUser(userId uint, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetProduct(productId uint, db *gorm.DB, loadUser bool) (Product, error) {
	var product Product

	var result *gorm.DB = db
	if loadUser {
		result = result.Preload("User")
	}
	result = result.First(&product, "id = ?", productId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return product, ErrProductNotFound
		}
		slog.Error("sql error in get product", "product_id", productId, "error", result.Error)
		return product, ErrDbAccessFailed
	}

	return product, nil
}

func GetRental(rentalId uint, db *gorm.DB, loadUser bool) (RentalItem, error) {
	var rental RentalItem

	var result *gorm.DB = db
	if loadUser {
		result = result.Preload("User")
	}
	result = result.First(&rental, "id = ?", rentalId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return rental, ErrRentalNotFound
		}
		slog.Error("sql error in get rental item", "rental_id", rentalId, "error", result.Error)
		return rental, ErrDbAccessFailed
	}

	return rental, nil
}

func GetNotification(notificationId uint, db *gorm.DB) (Notification, error) {
	var notification Notification

	result := db.First(&notification, "id = ?", notificationId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return notification, ErrNotificationNotFound
		}
		slog.Error("sql error in get notification", "notification_id", notificationId, "error", result.Error)
		return notification, ErrDbAccessFailed
	}

	return notification, nil
}

func GetHistoryEntry(historyId uint, db *gorm.DB) (UserHistory, error) {
	var entry UserHistory

	result := db.First(&entry, "id = ?", historyId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return entry, ErrHistoryNotFound
		}
		slog.Error("sql error in get history entry", "history_id", historyId, "error", result.Error)
		return entry, ErrDbAccessFailed
	}

	return entry, nil
}

// RatingSummary is the derived rating of a listing. It is computed on read
// and never stored on the listing itself.
type RatingSummary struct {
	AvgRating   float64
	ReviewCount int64
}

func roundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

// GetRatingSummary aggregates the rating column of table for rows matching
// query. An empty set yields a zero average.
func GetRatingSummary(db *gorm.DB, table string, query string, args ...interface{}) (RatingSummary, error) {
	var row struct {
		AvgRating   float64
		ReviewCount int64
	}

	result := db.Table(table).
		Select("COALESCE(AVG(rating), 0) AS avg_rating, COUNT(*) AS review_count").
		Where(query, args...).
		Scan(&row)
	if result.Error != nil {
		slog.Error("sql error aggregating ratings", "table", table, "error", result.Error)
		return RatingSummary{}, ErrDbAccessFailed
	}

	return RatingSummary{AvgRating: roundRating(row.AvgRating), ReviewCount: row.ReviewCount}, nil
}

// GetRatingSummaries aggregates ratings for many parents at once, keyed by
// the value of groupColumn.
func GetRatingSummaries(db *gorm.DB, table, groupColumn string, ids []uint) (map[uint]RatingSummary, error) {
	summaries := make(map[uint]RatingSummary, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	var rows []struct {
		ParentId    uint
		AvgRating   float64
		ReviewCount int64
	}

	result := db.Table(table).
		Select(groupColumn+" AS parent_id, COALESCE(AVG(rating), 0) AS avg_rating, COUNT(*) AS review_count").
		Where(groupColumn+" IN ?", ids).
		Group(groupColumn).
		Scan(&rows)
	if result.Error != nil {
		slog.Error("sql error aggregating grouped ratings", "table", table, "error", result.Error)
		return nil, ErrDbAccessFailed
	}

	for _, row := range rows {
		summaries[row.ParentId] = RatingSummary{AvgRating: roundRating(row.AvgRating), ReviewCount: row.ReviewCount}
	}

	return summaries, nil
}

// AttachmentPaths holds the image and video paths of one owner in upload order.
type AttachmentPaths struct {
	Images []string
	Videos []string
}

func LoadAttachments(db *gorm.DB, ownerType string, ownerIds []uint) (map[uint]AttachmentPaths, error) {
	paths := make(map[uint]AttachmentPaths, len(ownerIds))
	if len(ownerIds) == 0 {
		return paths, nil
	}

	var attachments []Attachment
	result := db.Where("owner_type = ? AND owner_id IN ?", ownerType, ownerIds).Order("owner_id, position").Find(&attachments)
	if result.Error != nil {
		slog.Error("sql error loading attachments", "owner_type", ownerType, "error", result.Error)
		return nil, ErrDbAccessFailed
	}

	for _, a := range attachments {
		p := paths[a.OwnerId]
		if a.Kind == VideoMedia {
			p.Videos = append(p.Videos, a.Path)
		} else {
			p.Images = append(p.Images, a.Path)
		}
		paths[a.OwnerId] = p
	}

	return paths, nil
}

// NewAttachments builds attachment rows for an owner, images first.
func NewAttachments(ownerType string, ownerId uint, images, videos []string) []Attachment {
	attachments := make([]Attachment, 0, len(images)+len(videos))
	for _, path := range images {
		attachments = append(attachments, Attachment{OwnerType: ownerType, OwnerId: ownerId, Kind: ImageMedia, Path: path, Position: len(attachments)})
	}
	for _, path := range videos {
		attachments = append(attachments, Attachment{OwnerType: ownerType, OwnerId: ownerId, Kind: VideoMedia, Path: path, Position: len(attachments)})
	}
	return attachments
}

func DeleteAttachments(db *gorm.DB, ownerType string, ownerIds ...uint) error {
	if len(ownerIds) == 0 {
		return nil
	}
	result := db.Where("owner_type = ? AND owner_id IN ?", ownerType, ownerIds).Delete(&Attachment{})
	if result.Error != nil {
		slog.Error("sql error deleting attachments", "owner_type", ownerType, "error", result.Error)
		return ErrDbAccessFailed
	}
	return nil
}

// OrEmpty keeps json output as [] instead of null.
func OrEmpty(paths []string) []string {
	if paths == nil {
		return []string{}
	}
	return paths
}
