package services

import (
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/schema"
	"localfarmer/utils"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type NotificationService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *NotificationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/", s.List)
		r.Get("/unread-count", s.UnreadCount)
		r.Put("/read-all", s.MarkAllRead)
		r.Put("/{notification_id}/read", s.MarkRead)
		r.Delete("/{notification_id}", s.Delete)
	})

	return r
}

type notificationInfo struct {
	Id              uint      `json:"id"`
	Category        string    `json:"category"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	RelatedItemId   *uint     `json:"related_item_id"`
	RelatedItemType string    `json:"related_item_type"`
	IsRead          bool      `json:"is_read"`
	CreatedAt       time.Time `json:"created_at"`
}

type listNotificationsResponse struct {
	utils.Status
	Notifications []notificationInfo `json:"notifications"`
}

func (s *NotificationService) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	query := s.db.Where("user_id = ?", user.Id)
	if category := r.URL.Query().Get("category"); category != "" && category != "all" {
		query = query.Where("category = ?", category)
	}

	var notifications []schema.Notification
	if result := query.Order("created_at DESC, id DESC").Find(&notifications); result.Error != nil {
		writeError(w, dbError("sql error listing notifications", result.Error, "user_id", user.Id))
		return
	}

	res := make([]notificationInfo, 0, len(notifications))
	for _, n := range notifications {
		res = append(res, notificationInfo{
			Id:              n.Id,
			Category:        n.Category,
			Title:           n.Title,
			Message:         n.Message,
			RelatedItemId:   n.RelatedItemId,
			RelatedItemType: n.RelatedItemType,
			IsRead:          n.IsRead,
			CreatedAt:       n.CreatedAt,
		})
	}

	utils.WriteJsonResponse(w, http.StatusOK, listNotificationsResponse{Status: utils.Success(""), Notifications: res})
}

type unreadCountResponse struct {
	utils.Status
	Count int64 `json:"count"`
}

func (s *NotificationService) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	count, err := countRows(s.db, &schema.Notification{}, "user_id = ? AND is_read = ?", user.Id, false)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, unreadCountResponse{Status: utils.Success(""), Count: count})
}

// ownedNotification loads a notification and checks that it belongs to user.
func ownedNotification(txn *gorm.DB, notificationId uint, user schema.User) (schema.Notification, error) {
	notification, err := schema.GetNotification(notificationId, txn)
	if err != nil {
		return notification, lookupError(err, schema.ErrNotificationNotFound)
	}
	if err := requireOwner(notification.UserId, user, ErrUnauthorized); err != nil {
		return notification, err
	}
	return notification, nil
}

func (s *NotificationService) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	notificationId, err := utils.URLParamUint(r, "notification_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		notification, err := ownedNotification(txn, notificationId, user)
		if err != nil {
			return err
		}
		if result := txn.Model(&notification).Update("is_read", true); result.Error != nil {
			return dbError("sql error marking notification read", result.Error, "notification_id", notificationId)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteSuccess(w, "Notification marked as read")
}

func (s *NotificationService) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	result := s.db.Model(&schema.Notification{}).Where("user_id = ? AND is_read = ?", user.Id, false).Update("is_read", true)
	if result.Error != nil {
		writeError(w, dbError("sql error marking all notifications read", result.Error, "user_id", user.Id))
		return
	}

	utils.WriteSuccess(w, "All notifications marked as read")
}

func (s *NotificationService) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	notificationId, err := utils.URLParamUint(r, "notification_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		notification, err := ownedNotification(txn, notificationId, user)
		if err != nil {
			return err
		}
		if result := txn.Delete(&notification); result.Error != nil {
			return dbError("sql error deleting notification", result.Error, "notification_id", notificationId)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteSuccess(w, "Notification deleted")
}
