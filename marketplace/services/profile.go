package services

import (
	"fmt"
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/media"
	"localfarmer/marketplace/schema"
	"localfarmer/marketplace/storage"
	"localfarmer/utils"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type ProfileService struct {
	db       *gorm.DB
	storage  storage.Storage
	ingestor *media.Ingestor
	userAuth auth.IdentityProvider
}

func (s *ProfileService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/full", s.Full)
		r.Put("/update", s.Update)
		r.Get("/stats", s.Stats)

		r.Get("/my-products", s.MyProducts)
		r.Get("/my-rentals", s.MyRentals)
		r.Get("/my-product-requirements", s.MyProductRequirements)
		r.Get("/my-rental-requirements", s.MyRentalRequirements)

		r.Get("/feedback", s.FeedbackReceived)
		r.Get("/my-feedback", s.FeedbackGiven)

		r.With(checkSufficientStorage(s.storage)).Post("/photo", s.Photo)
	})

	return r
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

type fullProfile struct {
	Id                uint      `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	Location          string    `json:"location"`
	UserType          string    `json:"user_type"`
	PreferredLanguage string    `json:"preferred_language"`
	ProfilePhoto      *string   `json:"profile_photo"`
	MemberSince       time.Time `json:"member_since"`
}

type fullProfileResponse struct {
	utils.Status
	User fullProfile `json:"user"`
}

func (s *ProfileService) Full(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	profile := fullProfile{
		Id:                user.Id,
		Name:              user.Name,
		Email:             user.Email,
		Phone:             user.Phone,
		Location:          user.Location,
		UserType:          defaultString(user.UserType, "farmer"),
		PreferredLanguage: defaultString(user.PreferredLanguage, "en"),
		MemberSince:       user.CreatedAt,
	}
	if user.ProfilePhoto != "" {
		profile.ProfilePhoto = &user.ProfilePhoto
	}

	utils.WriteJsonResponse(w, http.StatusOK, fullProfileResponse{Status: utils.Success(""), User: profile})
}

type updateProfileRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Location          string `json:"location"`
	UserType          string `json:"user_type"`
	PreferredLanguage string `json:"preferred_language"`
}

func (s *ProfileService) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var params updateProfileRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Phone = strings.TrimSpace(params.Phone)
	params.Location = strings.TrimSpace(params.Location)

	if params.Name == "" || params.Email == "" || params.Phone == "" || params.Location == "" {
		utils.WriteError(w, "Name, email, phone and location are required", http.StatusBadRequest)
		return
	}

	err := saveContactDetails(s.db, user.Id, map[string]interface{}{
		"name":               params.Name,
		"email":              params.Email,
		"phone":              params.Phone,
		"location":           params.Location,
		"user_type":          defaultString(params.UserType, "farmer"),
		"preferred_language": defaultString(params.PreferredLanguage, "en"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteSuccess(w, "Profile updated successfully")
}

func (s *ProfileService) Photo(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	file, ok := singleFile(w, r, "file")
	if !ok {
		return
	}

	saved, err := s.ingestor.Save(file, storage.ProfilesDir, fmt.Sprintf("profile_%d", user.Id), media.Images)
	if err != nil {
		writeError(w, uploadError(err))
		return
	}

	result := s.db.Model(&schema.User{Id: user.Id}).Update("profile_photo", saved.Url)
	if result.Error != nil {
		slog.Error("sql error updating profile photo", "user_id", user.Id, "error", result.Error)
		_ = s.ingestor.Remove(saved.Url)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	if user.ProfilePhoto != "" {
		_ = s.ingestor.Remove(user.ProfilePhoto)
	}

	utils.WriteJsonResponse(w, http.StatusOK, uploadResponse{Status: utils.Success(""), Url: saved.Url})
}

type profileStats struct {
	ProductsPosted      int64   `json:"products_posted"`
	RentalsPosted       int64   `json:"rentals_posted"`
	ProductRequirements int64   `json:"product_requirements"`
	RentalRequirements  int64   `json:"rental_requirements"`
	ContactsMade        int64   `json:"contacts_made"`
	FeedbackReceived    int64   `json:"feedback_received"`
	AverageRating       float64 `json:"average_rating"`
}

type profileStatsResponse struct {
	utils.Status
	Stats profileStats `json:"stats"`
}

func (s *ProfileService) Stats(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var stats profileStats
	counts := []struct {
		dest  *int64
		model interface{}
		query string
		args  []interface{}
	}{
		{&stats.ProductsPosted, &schema.Product{}, "user_id = ?", []interface{}{user.Id}},
		{&stats.RentalsPosted, &schema.RentalItem{}, "user_id = ?", []interface{}{user.Id}},
		{&stats.ProductRequirements, &schema.CustomerRequirement{}, "user_id = ?", []interface{}{user.Id}},
		{&stats.RentalRequirements, &schema.RentalRequirement{}, "user_id = ?", []interface{}{user.Id}},
		{&stats.ContactsMade, &schema.UserHistory{}, "user_id = ? AND action_type = ?", []interface{}{user.Id, schema.ActionContacted}},
	}
	for _, c := range counts {
		count, err := countRows(s.db, c.model, c.query, c.args...)
		if err != nil {
			writeError(w, err)
			return
		}
		*c.dest = count
	}

	rating, err := schema.GetRatingSummary(s.db, "user_feedback", "farmer_id = ?", user.Id)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}
	stats.FeedbackReceived = rating.ReviewCount
	stats.AverageRating = rating.AvgRating

	utils.WriteJsonResponse(w, http.StatusOK, profileStatsResponse{Status: utils.Success(""), Stats: stats})
}

type myProduct struct {
	Id        uint      `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Unit      string    `json:"unit"`
	Images    []string  `json:"images"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type myProductsResponse struct {
	utils.Status
	Products []myProduct `json:"products"`
}

func (s *ProfileService) MyProducts(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var products []schema.Product
	result := s.db.Where("user_id = ?", user.Id).Order("created_at DESC, id DESC").Find(&products)
	if result.Error != nil {
		writeError(w, dbError("sql error listing user products", result.Error, "user_id", user.Id))
		return
	}

	attachments, err := schema.LoadAttachments(s.db, schema.ProductItem, listIds(products, func(p schema.Product) uint { return p.Id }))
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	res := make([]myProduct, 0, len(products))
	for _, p := range products {
		res = append(res, myProduct{
			Id:        p.Id,
			Name:      p.Name,
			Category:  p.Category,
			Price:     p.Price,
			Quantity:  p.Quantity,
			Unit:      p.Unit,
			Images:    schema.OrEmpty(attachments[p.Id].Images),
			Status:    defaultString(p.Status, schema.StatusActive),
			CreatedAt: p.CreatedAt,
		})
	}

	utils.WriteJsonResponse(w, http.StatusOK, myProductsResponse{Status: utils.Success(""), Products: res})
}

type myRental struct {
	Id          uint      `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	PricePerDay float64   `json:"price_per_day"`
	Location    string    `json:"location"`
	Images      []string  `json:"images"`
	Status      string    `json:"status"`
	AvgRating   float64   `json:"avg_rating"`
	ReviewCount int64     `json:"review_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type myRentalsResponse struct {
	utils.Status
	Rentals []myRental `json:"rentals"`
}

func (s *ProfileService) MyRentals(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var rentals []schema.RentalItem
	result := s.db.Where("user_id = ?", user.Id).Order("created_at DESC, id DESC").Find(&rentals)
	if result.Error != nil {
		writeError(w, dbError("sql error listing user rentals", result.Error, "user_id", user.Id))
		return
	}

	ids := listIds(rentals, func(r schema.RentalItem) uint { return r.Id })

	ratings, err := schema.GetRatingSummaries(s.db, "rental_feedback", "rental_id", ids)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}
	attachments, err := schema.LoadAttachments(s.db, schema.RentalItemType, ids)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	res := make([]myRental, 0, len(rentals))
	for _, rental := range rentals {
		rating := ratings[rental.Id]
		res = append(res, myRental{
			Id:          rental.Id,
			Name:        rental.Name,
			Category:    rental.Category,
			PricePerDay: rental.PricePerDay,
			Location:    rental.Location,
			Images:      schema.OrEmpty(attachments[rental.Id].Images),
			Status:      defaultString(rental.AvailabilityStatus, schema.StatusAvailable),
			AvgRating:   rating.AvgRating,
			ReviewCount: rating.ReviewCount,
			CreatedAt:   rental.CreatedAt,
		})
	}

	utils.WriteJsonResponse(w, http.StatusOK, myRentalsResponse{Status: utils.Success(""), Rentals: res})
}

func (s *ProfileService) MyProductRequirements(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var requirements []schema.CustomerRequirement
	result := s.db.Where("user_id = ?", user.Id).Order("created_at DESC, id DESC").Find(&requirements)
	if result.Error != nil {
		writeError(w, dbError("sql error listing user product requirements", result.Error, "user_id", user.Id))
		return
	}

	res := make([]productRequirement, 0, len(requirements))
	for _, req := range requirements {
		res = append(res, convertProductRequirement(req))
	}

	utils.WriteJsonResponse(w, http.StatusOK, productRequirementsResponse{Status: utils.Success(""), Requirements: res})
}

func (s *ProfileService) MyRentalRequirements(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var requirements []schema.RentalRequirement
	result := s.db.Where("user_id = ?", user.Id).Order("created_at DESC, id DESC").Find(&requirements)
	if result.Error != nil {
		writeError(w, dbError("sql error listing user rental requirements", result.Error, "user_id", user.Id))
		return
	}

	res := make([]rentalRequirement, 0, len(requirements))
	for _, req := range requirements {
		res = append(res, convertRentalRequirement(req))
	}

	utils.WriteJsonResponse(w, http.StatusOK, rentalRequirementsResponse{Status: utils.Success(""), Requirements: res})
}

type profileFeedback struct {
	Id            uint      `json:"id"`
	ReviewerName  string    `json:"reviewer_name,omitempty"`
	ReviewerPhone string    `json:"reviewer_phone,omitempty"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
	ProductName   *string   `json:"product_name"`
	Images        []string  `json:"images"`
	Videos        []string  `json:"videos"`
	CreatedAt     time.Time `json:"created_at"`
}

type profileFeedbackResponse struct {
	utils.Status
	Feedbacks     []profileFeedback `json:"feedbacks"`
	AverageRating float64           `json:"average_rating"`
	TotalReviews  int64             `json:"total_reviews"`
}

type feedbackRow struct {
	Id            uint
	ReviewerName  string
	ReviewerPhone string
	Rating        int
	Comment       string
	ProductName   *string
	CreatedAt     time.Time
}

// listFeedback returns owner feedback rows matching column = userId together
// with the product names they refer to.
func (s *ProfileService) listFeedback(w http.ResponseWriter, userId uint, column string, includeReviewer bool) {
	var rows []feedbackRow
	result := s.db.Table("user_feedback").
		Select("user_feedback.id, user_feedback.reviewer_name, user_feedback.reviewer_phone, user_feedback.rating, user_feedback.comment, user_feedback.created_at, products.name AS product_name").
		Joins("LEFT JOIN products ON products.id = user_feedback.product_id").
		Where("user_feedback."+column+" = ?", userId).
		Order("user_feedback.created_at DESC, user_feedback.id DESC").
		Scan(&rows)
	if result.Error != nil {
		writeError(w, dbError("sql error listing profile feedback", result.Error, "user_id", userId))
		return
	}

	rating, err := schema.GetRatingSummary(s.db, "user_feedback", column+" = ?", userId)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	attachments, err := schema.LoadAttachments(s.db, schema.UserFeedbackItem, listIds(rows, func(row feedbackRow) uint { return row.Id }))
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	feedbacks := make([]profileFeedback, 0, len(rows))
	for _, row := range rows {
		fb := profileFeedback{
			Id:          row.Id,
			Rating:      row.Rating,
			Comment:     row.Comment,
			ProductName: row.ProductName,
			Images:      schema.OrEmpty(attachments[row.Id].Images),
			Videos:      schema.OrEmpty(attachments[row.Id].Videos),
			CreatedAt:   row.CreatedAt,
		}
		if includeReviewer {
			fb.ReviewerName = row.ReviewerName
			fb.ReviewerPhone = row.ReviewerPhone
		}
		feedbacks = append(feedbacks, fb)
	}

	utils.WriteJsonResponse(w, http.StatusOK, profileFeedbackResponse{
		Status:        utils.Success(""),
		Feedbacks:     feedbacks,
		AverageRating: rating.AvgRating,
		TotalReviews:  rating.ReviewCount,
	})
}

func (s *ProfileService) FeedbackReceived(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}
	s.listFeedback(w, user.Id, "farmer_id", true)
}

func (s *ProfileService) FeedbackGiven(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}
	s.listFeedback(w, user.Id, "user_id", false)
}
