package services

import (
	"errors"
	"fmt"
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/media"
	"localfarmer/marketplace/schema"
	"localfarmer/marketplace/storage"
	"localfarmer/utils"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// LivePriceWindow is how long a price post stays visible after creation.
const LivePriceWindow = 24 * time.Hour

var (
	ErrLoginRequired     = errors.New("Login required")
	ErrInvalidPriceValue = errors.New("Invalid price values")
	ErrInvalidPriceRange = errors.New("Invalid price range")
)

type LivePriceService struct {
	db       *gorm.DB
	storage  storage.Storage
	ingestor *media.Ingestor
	now      func() time.Time
}

func (s *LivePriceService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.List)
	r.With(checkSufficientStorage(s.storage)).Post("/", s.Create)
	r.Get("/{price_id}", s.Get)
	r.Get("/{price_id}/feedback", s.ListFeedback)
	r.Post("/{price_id}/feedback", s.SubmitFeedback)

	return r
}

// live restricts a query to posts still inside the visibility window.
func (s *LivePriceService) live(db *gorm.DB) *gorm.DB {
	return db.Where("live_prices.created_at > ?", s.now().Add(-LivePriceWindow))
}

func (s *LivePriceService) getLivePrice(priceId uint, loadUser bool) (schema.LivePrice, error) {
	var price schema.LivePrice
	query := s.live(s.db)
	if loadUser {
		query = query.Preload("User")
	}
	result := query.Limit(1).Find(&price, "live_prices.id = ?", priceId)
	if result.Error != nil {
		return price, dbError("sql error loading live price", result.Error, "price_id", priceId)
	}
	if result.RowsAffected == 0 {
		return price, CodedError(schema.ErrLivePriceNotFound, http.StatusNotFound)
	}
	return price, nil
}

type livePriceFeedback struct {
	Id         uint      `json:"id"`
	FarmerName string    `json:"farmer_name"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

type livePriceInfo struct {
	Id            uint                `json:"id"`
	UserId        uint                `json:"user_id"`
	ProductName   string              `json:"product_name"`
	Category      string              `json:"category"`
	MinPrice      float64             `json:"min_price"`
	MaxPrice      float64             `json:"max_price"`
	PriceUnit     string              `json:"price_unit"`
	PriceTrend    string              `json:"price_trend"`
	MarketName    string              `json:"market_name"`
	Phone         string              `json:"phone"`
	Area          string              `json:"area"`
	City          string              `json:"city"`
	District      string              `json:"district"`
	State         string              `json:"state"`
	PinCode       string              `json:"pin_code"`
	Latitude      *float64            `json:"latitude"`
	Longitude     *float64            `json:"longitude"`
	Images        []string            `json:"images"`
	Videos        []string            `json:"videos"`
	PosterName    string              `json:"poster_name"`
	FeedbackCount int64               `json:"feedback_count"`
	AvgRating     float64             `json:"avg_rating"`
	CreatedAt     time.Time           `json:"created_at"`
	Feedbacks     []livePriceFeedback `json:"feedbacks,omitempty"`
}

func convertLivePrice(price schema.LivePrice, attachments schema.AttachmentPaths, rating schema.RatingSummary) livePriceInfo {
	info := livePriceInfo{
		Id:            price.Id,
		UserId:        price.UserId,
		ProductName:   price.ProductName,
		Category:      price.Category,
		MinPrice:      price.MinPrice,
		MaxPrice:      price.MaxPrice,
		PriceUnit:     price.PriceUnit,
		PriceTrend:    price.PriceTrend,
		MarketName:    price.MarketName,
		Phone:         price.Phone,
		Area:          price.Area,
		City:          price.City,
		District:      price.District,
		State:         price.State,
		PinCode:       price.PinCode,
		Latitude:      price.Latitude,
		Longitude:     price.Longitude,
		Images:        schema.OrEmpty(attachments.Images),
		Videos:        schema.OrEmpty(attachments.Videos),
		FeedbackCount: rating.ReviewCount,
		AvgRating:     rating.AvgRating,
		CreatedAt:     price.CreatedAt,
	}
	if price.User != nil {
		info.PosterName = price.User.Name
	}
	return info
}

type listLivePricesResponse struct {
	utils.Status
	Prices []livePriceInfo `json:"prices"`
}

func (s *LivePriceService) List(w http.ResponseWriter, r *http.Request) {
	var prices []schema.LivePrice
	result := s.live(s.db).Preload("User").Order("created_at DESC, id DESC").Find(&prices)
	if result.Error != nil {
		writeError(w, dbError("sql error listing live prices", result.Error))
		return
	}

	ids := listIds(prices, func(p schema.LivePrice) uint { return p.Id })

	ratings, err := schema.GetRatingSummaries(s.db, "live_price_feedback", "price_id", ids)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}
	attachments, err := schema.LoadAttachments(s.db, schema.LivePriceItem, ids)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	res := make([]livePriceInfo, 0, len(prices))
	for _, price := range prices {
		res = append(res, convertLivePrice(price, attachments[price.Id], ratings[price.Id]))
	}

	utils.WriteJsonResponse(w, http.StatusOK, listLivePricesResponse{Status: utils.Success(""), Prices: res})
}

// optionalCoordinate parses a latitude or longitude form value. Anything
// that is not a number is treated as absent.
func optionalCoordinate(value string) *float64 {
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}

type createLivePriceResponse struct {
	utils.Status
	Id uint `json:"id"`
}

func (s *LivePriceService) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.OptionalUser(r)
	if !ok {
		utils.WriteError(w, ErrLoginRequired.Error(), http.StatusUnauthorized)
		return
	}

	if !parseForm(w, r) {
		return
	}

	productName := formValue(r, "product_name")
	category := formValue(r, "category")
	minText := formValue(r, "min_price")
	maxText := formValue(r, "max_price")
	phone := formValue(r, "phone")

	if productName == "" || category == "" || minText == "" || maxText == "" || phone == "" {
		utils.WriteError(w, "Product name, category, price range, and phone are required", http.StatusBadRequest)
		return
	}

	minPrice, minErr := strconv.ParseFloat(minText, 64)
	maxPrice, maxErr := strconv.ParseFloat(maxText, 64)
	if minErr != nil || maxErr != nil {
		utils.WriteError(w, ErrInvalidPriceValue.Error(), http.StatusBadRequest)
		return
	}
	if minPrice < 0 || maxPrice < 0 || minPrice > maxPrice {
		utils.WriteError(w, ErrInvalidPriceRange.Error(), http.StatusBadRequest)
		return
	}

	trend := strings.ToLower(defaultString(formValue(r, "price_trend"), schema.PriceStable))
	if err := schema.CheckValidPriceTrend(trend); err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	price := schema.LivePrice{
		UserId:      user.Id,
		ProductName: productName,
		Category:    category,
		MinPrice:    minPrice,
		MaxPrice:    maxPrice,
		PriceUnit:   defaultString(formValue(r, "price_unit"), "Kg"),
		PriceTrend:  trend,
		MarketName:  formValue(r, "market_name"),
		Phone:       phone,
		Area:        formValue(r, "area"),
		City:        formValue(r, "city"),
		District:    formValue(r, "district"),
		State:       formValue(r, "state"),
		PinCode:     formValue(r, "pin_code"),
		Latitude:    optionalCoordinate(formValue(r, "latitude")),
		Longitude:   optionalCoordinate(formValue(r, "longitude")),
		CreatedAt:   s.now(),
	}

	prefix := fmt.Sprintf("live_price_%d", user.Id)
	savedImages, _ := s.ingestor.SaveAll(formFiles(r, "images"), storage.LivePricesDir, prefix, media.Images)
	savedVideos, _ := s.ingestor.SaveAll(formFiles(r, "videos"), storage.LivePricesDir, prefix, media.Videos)
	images, _ := media.Urls(savedImages)
	_, videos := media.Urls(savedVideos)

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if result := txn.Create(&price); result.Error != nil {
			return dbError("sql error creating live price", result.Error, "user_id", user.Id)
		}
		if attachments := schema.NewAttachments(schema.LivePriceItem, price.Id, images, videos); len(attachments) > 0 {
			if result := txn.Create(&attachments); result.Error != nil {
				return dbError("sql error saving live price attachments", result.Error, "price_id", price.Id)
			}
		}
		return nil
	})
	if err != nil {
		for _, url := range append(images, videos...) {
			_ = s.ingestor.Remove(url)
		}
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, createLivePriceResponse{
		Status: utils.Success("Live price posted successfully"),
		Id:     price.Id,
	})
}

type livePriceResponse struct {
	utils.Status
	Price livePriceInfo `json:"price"`
}

func (s *LivePriceService) Get(w http.ResponseWriter, r *http.Request) {
	priceId, err := utils.URLParamUint(r, "price_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	price, err := s.getLivePrice(priceId, true)
	if err != nil {
		writeError(w, err)
		return
	}

	feedbacks, summary, err := s.feedbackFor(priceId)
	if err != nil {
		writeError(w, err)
		return
	}

	attachments, err := schema.LoadAttachments(s.db, schema.LivePriceItem, []uint{priceId})
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	info := convertLivePrice(price, attachments[priceId], summary)
	info.Feedbacks = feedbacks

	utils.WriteJsonResponse(w, http.StatusOK, livePriceResponse{Status: utils.Success(""), Price: info})
}

func (s *LivePriceService) feedbackFor(priceId uint) ([]livePriceFeedback, schema.RatingSummary, error) {
	var rows []schema.LivePriceFeedback
	result := s.db.Where("price_id = ?", priceId).Order("created_at DESC, id DESC").Find(&rows)
	if result.Error != nil {
		return nil, schema.RatingSummary{}, dbError("sql error listing live price feedback", result.Error, "price_id", priceId)
	}

	summary, err := schema.GetRatingSummary(s.db, "live_price_feedback", "price_id = ?", priceId)
	if err != nil {
		return nil, schema.RatingSummary{}, CodedError(err, http.StatusInternalServerError)
	}

	feedbacks := make([]livePriceFeedback, 0, len(rows))
	for _, row := range rows {
		feedbacks = append(feedbacks, livePriceFeedback{
			Id:         row.Id,
			FarmerName: defaultString(row.FarmerName, "Anonymous"),
			Rating:     row.Rating,
			Comment:    row.Comment,
			CreatedAt:  row.CreatedAt,
		})
	}
	return feedbacks, summary, nil
}

type livePriceFeedbackStats struct {
	Count     int64   `json:"count"`
	AvgRating float64 `json:"avg_rating"`
}

type livePriceFeedbackResponse struct {
	utils.Status
	Feedbacks []livePriceFeedback    `json:"feedbacks"`
	Stats     livePriceFeedbackStats `json:"stats"`
}

func (s *LivePriceService) ListFeedback(w http.ResponseWriter, r *http.Request) {
	priceId, err := utils.URLParamUint(r, "price_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.getLivePrice(priceId, false); err != nil {
		writeError(w, err)
		return
	}

	feedbacks, summary, err := s.feedbackFor(priceId)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, livePriceFeedbackResponse{
		Status:    utils.Success(""),
		Feedbacks: feedbacks,
		Stats:     livePriceFeedbackStats{Count: summary.ReviewCount, AvgRating: summary.AvgRating},
	})
}

type submitLivePriceFeedbackRequest struct {
	Rating     interface{} `json:"rating"`
	Comment    string      `json:"comment"`
	FarmerName string      `json:"farmer_name"`
}

type submitLivePriceFeedbackResponse struct {
	utils.Status
	FeedbackId uint `json:"feedback_id"`
}

func (s *LivePriceService) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	priceId, err := utils.URLParamUint(r, "price_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params submitLivePriceFeedbackRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	rating, err := parseJsonRating(params.Rating)
	if err != nil {
		utils.WriteError(w, ErrRatingOutOfRange.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.getLivePrice(priceId, false); err != nil {
		writeError(w, err)
		return
	}

	user, loggedIn := auth.OptionalUser(r)
	name := strings.TrimSpace(params.FarmerName)
	if name == "" && loggedIn {
		name = user.Name
	}

	feedback := schema.LivePriceFeedback{
		PriceId:    priceId,
		UserId:     userIdPtr(user, loggedIn),
		FarmerName: defaultString(name, "Anonymous"),
		Rating:     rating,
		Comment:    strings.TrimSpace(params.Comment),
	}

	if result := s.db.Create(&feedback); result.Error != nil {
		writeError(w, dbError("sql error creating live price feedback", result.Error, "price_id", priceId))
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, submitLivePriceFeedbackResponse{
		Status:     utils.Success("Feedback submitted successfully"),
		FeedbackId: feedback.Id,
	})
}
