package services

import (
	"errors"
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/schema"
	"localfarmer/utils"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

var ErrItemAlreadySaved = errors.New("Item already saved")

// SavedItemService keeps the listings a user bookmarked.
type SavedItemService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *SavedItemService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/", s.List)
		r.Post("/", s.Save)
		r.Delete("/{saved_id}", s.Delete)
	})

	return r
}

type savedItemInfo struct {
	Id        uint      `json:"id"`
	ItemType  string    `json:"item_type"`
	ItemId    uint      `json:"item_id"`
	CreatedAt time.Time `json:"created_at"`
}

type listSavedItemsResponse struct {
	utils.Status
	Items []savedItemInfo `json:"items"`
}

func (s *SavedItemService) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	query := s.db.Where("user_id = ?", user.Id)
	if itemType := strings.ToLower(r.URL.Query().Get("item_type")); itemType != "" {
		query = query.Where("item_type = ?", itemType)
	}

	var items []schema.SavedItem
	if result := query.Order("created_at DESC, id DESC").Find(&items); result.Error != nil {
		writeError(w, dbError("sql error listing saved items", result.Error, "user_id", user.Id))
		return
	}

	res := make([]savedItemInfo, 0, len(items))
	for _, item := range items {
		res = append(res, savedItemInfo{Id: item.Id, ItemType: item.ItemType, ItemId: item.ItemId, CreatedAt: item.CreatedAt})
	}

	utils.WriteJsonResponse(w, http.StatusOK, listSavedItemsResponse{Status: utils.Success(""), Items: res})
}

type saveItemRequest struct {
	ItemType string `json:"item_type"`
	ItemId   uint   `json:"item_id"`
}

type saveItemResponse struct {
	utils.Status
	SavedId uint `json:"saved_id"`
}

func (s *SavedItemService) Save(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var params saveItemRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	params.ItemType = strings.ToLower(strings.TrimSpace(params.ItemType))

	if params.ItemType == "" || params.ItemId == 0 {
		utils.WriteError(w, "item_type and item_id are required", http.StatusBadRequest)
		return
	}
	if err := schema.CheckValidItemType(params.ItemType); err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	item := schema.SavedItem{UserId: user.Id, ItemType: params.ItemType, ItemId: params.ItemId}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existing int64
		result := txn.Model(&schema.SavedItem{}).
			Where("user_id = ? AND item_type = ? AND item_id = ?", user.Id, item.ItemType, item.ItemId).
			Count(&existing)
		if result.Error != nil {
			return dbError("sql error checking saved item", result.Error, "user_id", user.Id)
		}
		if existing > 0 {
			return CodedError(ErrItemAlreadySaved, http.StatusBadRequest)
		}

		if result := txn.Create(&item); result.Error != nil {
			if schema.IsDuplicateKey(result.Error) {
				return CodedError(ErrItemAlreadySaved, http.StatusBadRequest)
			}
			return dbError("sql error saving item", result.Error, "user_id", user.Id)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, saveItemResponse{
		Status:  utils.Success("Item saved successfully"),
		SavedId: item.Id,
	})
}

func (s *SavedItemService) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	savedId, err := utils.URLParamUint(r, "saved_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var item schema.SavedItem
		result := txn.Limit(1).Find(&item, "id = ?", savedId)
		if result.Error != nil {
			return dbError("sql error loading saved item", result.Error, "saved_id", savedId)
		}
		if result.RowsAffected == 0 {
			return CodedError(schema.ErrSavedItemNotFound, http.StatusNotFound)
		}
		if err := requireOwner(item.UserId, user, ErrUnauthorized); err != nil {
			return err
		}
		if result := txn.Delete(&item); result.Error != nil {
			return dbError("sql error deleting saved item", result.Error, "saved_id", savedId)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteSuccess(w, "Item removed from saved")
}
