package services

import (
	"encoding/json"
	"fmt"
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/schema"
	"localfarmer/utils"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultHistoryPageSize = 50
	maxHistoryPageSize     = 200
	recentActivityDays     = 7
	dateLayout             = "2006-01-02"
)

type HistoryService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	now      func() time.Time
}

func (s *HistoryService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/", s.List)
		r.Post("/", s.Add)
		r.Get("/stats", s.Stats)
		r.Delete("/clear", s.Clear)
		r.Delete("/{history_id}", s.Delete)
	})

	return r
}

type historyEntry struct {
	Id           uint            `json:"id"`
	ActionType   string          `json:"action_type"`
	ItemType     string          `json:"item_type"`
	ItemId       *uint           `json:"item_id"`
	ItemName     string          `json:"item_name"`
	OwnerName    string          `json:"owner_name"`
	Location     string          `json:"location"`
	ActionStatus string          `json:"action_status"`
	ExtraData    json.RawMessage `json:"extra_data"`
	CreatedAt    time.Time       `json:"created_at"`
}

func convertHistoryEntry(entry schema.UserHistory) historyEntry {
	res := historyEntry{
		Id:           entry.Id,
		ActionType:   entry.ActionType,
		ItemType:     entry.ItemType,
		ItemId:       entry.ItemId,
		ItemName:     entry.ItemName,
		OwnerName:    entry.OwnerName,
		Location:     entry.Location,
		ActionStatus: entry.ActionStatus,
		CreatedAt:    entry.CreatedAt,
	}
	if len(entry.ExtraData) > 0 && json.Valid(entry.ExtraData) {
		res.ExtraData = json.RawMessage(entry.ExtraData)
	} else {
		res.ExtraData = json.RawMessage("null")
	}
	return res
}

type pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

type listHistoryResponse struct {
	utils.Status
	History    []historyEntry `json:"history"`
	Pagination pagination     `json:"pagination"`
}

// parseDay reads a YYYY-MM-DD query value as midnight UTC.
func parseDay(r *http.Request, key string) (*time.Time, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil, nil
	}
	day, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, CodedError(fmt.Errorf("Invalid %v, expected YYYY-MM-DD", key), http.StatusBadRequest)
	}
	return &day, nil
}

func (s *HistoryService) filtered(r *http.Request, userId uint) (*gorm.DB, error) {
	query := s.db.Model(&schema.UserHistory{}).Where("user_id = ?", userId)

	params := r.URL.Query()
	if actionType := strings.ToLower(strings.TrimSpace(params.Get("action_type"))); actionType != "" {
		query = query.Where("action_type = ?", actionType)
	}
	if itemType := strings.ToLower(strings.TrimSpace(params.Get("item_type"))); itemType != "" {
		query = query.Where("item_type = ?", itemType)
	}
	if search := strings.ToLower(strings.TrimSpace(params.Get("search"))); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("(LOWER(item_name) LIKE ? OR LOWER(owner_name) LIKE ? OR LOWER(location) LIKE ?)", pattern, pattern, pattern)
	}

	start, err := parseDay(r, "start_date")
	if err != nil {
		return nil, err
	}
	if start != nil {
		query = query.Where("created_at >= ?", *start)
	}

	end, err := parseDay(r, "end_date")
	if err != nil {
		return nil, err
	}
	if end != nil {
		query = query.Where("created_at < ?", end.AddDate(0, 0, 1))
	}

	return query, nil
}

func (s *HistoryService) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	page := max(utils.QueryInt(r, "page", 1), 1)
	perPage := utils.QueryInt(r, "per_page", defaultHistoryPageSize)
	if perPage < 1 {
		perPage = defaultHistoryPageSize
	}
	perPage = min(perPage, maxHistoryPageSize)

	query, err := s.filtered(r, user.Id)
	if err != nil {
		writeError(w, err)
		return
	}

	var total int64
	if result := query.Session(&gorm.Session{}).Count(&total); result.Error != nil {
		writeError(w, dbError("sql error counting history", result.Error, "user_id", user.Id))
		return
	}

	var entries []schema.UserHistory
	result := query.Order("created_at DESC, id DESC").Limit(perPage).Offset((page - 1) * perPage).Find(&entries)
	if result.Error != nil {
		writeError(w, dbError("sql error listing history", result.Error, "user_id", user.Id))
		return
	}

	res := make([]historyEntry, 0, len(entries))
	for _, entry := range entries {
		res = append(res, convertHistoryEntry(entry))
	}

	utils.WriteJsonResponse(w, http.StatusOK, listHistoryResponse{
		Status:  utils.Success(""),
		History: res,
		Pagination: pagination{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: (total + int64(perPage) - 1) / int64(perPage),
		},
	})
}

type addHistoryRequest struct {
	ActionType   string          `json:"action_type"`
	ItemType     string          `json:"item_type"`
	ItemId       *uint           `json:"item_id"`
	ItemName     string          `json:"item_name"`
	OwnerName    string          `json:"owner_name"`
	Location     string          `json:"location"`
	ActionStatus string          `json:"action_status"`
	ExtraData    json.RawMessage `json:"extra_data"`
}

type addHistoryResponse struct {
	utils.Status
	HistoryId uint `json:"history_id"`
}

func (s *HistoryService) Add(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var params addHistoryRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	params.ActionType = strings.ToLower(strings.TrimSpace(params.ActionType))
	params.ItemType = strings.ToLower(strings.TrimSpace(params.ItemType))
	params.ItemName = strings.TrimSpace(params.ItemName)

	if params.ActionType == "" || params.ItemType == "" || params.ItemName == "" {
		utils.WriteError(w, "action_type, item_type, and item_name are required", http.StatusBadRequest)
		return
	}
	if err := schema.CheckValidActionType(params.ActionType); err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := schema.CheckValidItemType(params.ItemType); err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry := schema.UserHistory{
		UserId:       user.Id,
		ActionType:   params.ActionType,
		ItemType:     params.ItemType,
		ItemId:       params.ItemId,
		ItemName:     params.ItemName,
		OwnerName:    strings.TrimSpace(params.OwnerName),
		Location:     strings.TrimSpace(params.Location),
		ActionStatus: defaultString(strings.TrimSpace(params.ActionStatus), schema.StatusCompleted),
		CreatedAt:    s.now(),
	}
	if extra := strings.TrimSpace(string(params.ExtraData)); extra != "" && extra != "null" {
		entry.ExtraData = datatypes.JSON(params.ExtraData)
	}

	if result := s.db.Create(&entry); result.Error != nil {
		writeError(w, dbError("sql error adding history entry", result.Error, "user_id", user.Id))
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, addHistoryResponse{
		Status:    utils.Success("History entry added successfully"),
		HistoryId: entry.Id,
	})
}

func (s *HistoryService) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	historyId, err := utils.URLParamUint(r, "history_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		entry, err := schema.GetHistoryEntry(historyId, txn)
		if err != nil {
			return lookupError(err, schema.ErrHistoryNotFound)
		}
		if err := requireOwner(entry.UserId, user, ErrUnauthorized); err != nil {
			return err
		}
		if result := txn.Delete(&entry); result.Error != nil {
			return dbError("sql error deleting history entry", result.Error, "history_id", historyId)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteSuccess(w, "History entry deleted successfully")
}

func (s *HistoryService) Clear(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	result := s.db.Where("user_id = ?", user.Id).Delete(&schema.UserHistory{})
	if result.Error != nil {
		writeError(w, dbError("sql error clearing history", result.Error, "user_id", user.Id))
		return
	}

	utils.WriteSuccess(w, fmt.Sprintf("Cleared %d history entries", result.RowsAffected))
}

type historyStats struct {
	Total          int64            `json:"total"`
	ByAction       map[string]int64 `json:"by_action"`
	ByItem         map[string]int64 `json:"by_item"`
	RecentActivity map[string]int64 `json:"recent_activity"`
}

type historyStatsResponse struct {
	utils.Status
	Stats historyStats `json:"stats"`
}

func (s *HistoryService) countBy(userId uint, column string) (map[string]int64, error) {
	var rows []struct {
		Name  string
		Count int64
	}
	result := s.db.Model(&schema.UserHistory{}).
		Select(column+" AS name, COUNT(*) AS count").
		Where("user_id = ?", userId).
		Group(column).
		Scan(&rows)
	if result.Error != nil {
		return nil, dbError("sql error grouping history", result.Error, "user_id", userId, "column", column)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Name] = row.Count
	}
	return counts, nil
}

func (s *HistoryService) Stats(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	stats := historyStats{RecentActivity: map[string]int64{}}

	var err error
	if stats.Total, err = countRows(s.db, &schema.UserHistory{}, "user_id = ?", user.Id); err != nil {
		writeError(w, err)
		return
	}
	if stats.ByAction, err = s.countBy(user.Id, "action_type"); err != nil {
		writeError(w, err)
		return
	}
	if stats.ByItem, err = s.countBy(user.Id, "item_type"); err != nil {
		writeError(w, err)
		return
	}

	// Days are bucketed here rather than in sql so the same query runs on
	// postgres and sqlite.
	var recent []time.Time
	result := s.db.Model(&schema.UserHistory{}).
		Where("user_id = ? AND created_at >= ?", user.Id, s.now().AddDate(0, 0, -recentActivityDays)).
		Pluck("created_at", &recent)
	if result.Error != nil {
		writeError(w, dbError("sql error loading recent history", result.Error, "user_id", user.Id))
		return
	}
	for _, createdAt := range recent {
		stats.RecentActivity[createdAt.UTC().Format(dateLayout)]++
	}

	utils.WriteJsonResponse(w, http.StatusOK, historyStatsResponse{Status: utils.Success(""), Stats: stats})
}
