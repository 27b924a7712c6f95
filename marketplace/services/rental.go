package services

import (
	"errors"
	"fmt"
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/media"
	"localfarmer/marketplace/notify"
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

var (
	ErrNotRentalOwner = errors.New("Unauthorized - only owner can upload media")
	ErrNoMediaFile    = errors.New("No media file provided")
	ErrNoFilesChosen  = errors.New("No files selected")
	ErrNothingStored  = errors.New("No files were uploaded")
)

type RentalService struct {
	db        *gorm.DB
	storage   storage.Storage
	ingestor  *media.Ingestor
	userAuth  auth.IdentityProvider
	publisher notify.Publisher
}

func (s *RentalService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.List)
	r.Get("/{rental_id}", s.Get)
	r.Get("/{rental_id}/feedback", s.ListFeedback)
	r.Post("/{rental_id}/feedback", s.SubmitFeedback)
	r.Get("/{rental_id}/media", s.ListMedia)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Post("/", s.Create)
		r.Delete("/{rental_id}", s.Delete)
		r.Delete("/{rental_id}/feedback/{feedback_id}", s.DeleteFeedback)
		r.With(checkSufficientStorage(s.storage)).Post("/{rental_id}/media", s.UploadMedia)
		r.Delete("/{rental_id}/media/{media_id}", s.DeleteMedia)
	})

	return r
}

type rentalFeedback struct {
	Id           uint      `json:"id"`
	ReviewerName string    `json:"reviewer_name"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

type rentalInfo struct {
	Id                 uint             `json:"id"`
	UserId             uint             `json:"user_id"`
	Name               string           `json:"name"`
	Category           string           `json:"category"`
	Description        string           `json:"description"`
	PricePerHour       *float64         `json:"price_per_hour"`
	PricePerDay        float64          `json:"price_per_day"`
	Location           string           `json:"location"`
	AvailabilityStatus string           `json:"availability_status"`
	Images             []string         `json:"images"`
	OwnerName          string           `json:"owner_name"`
	OwnerPhone         string           `json:"owner_phone"`
	OwnerLocation      string           `json:"owner_location"`
	AvgRating          float64          `json:"avg_rating"`
	ReviewCount        int64            `json:"review_count"`
	CreatedAt          time.Time        `json:"created_at"`
	Feedbacks          []rentalFeedback `json:"feedbacks,omitempty"`
}

func convertRental(rental schema.RentalItem, images []string, rating schema.RatingSummary) rentalInfo {
	info := rentalInfo{
		Id:                 rental.Id,
		UserId:             rental.UserId,
		Name:               rental.Name,
		Category:           rental.Category,
		Description:        rental.Description,
		PricePerHour:       rental.PricePerHour,
		PricePerDay:        rental.PricePerDay,
		Location:           rental.Location,
		AvailabilityStatus: defaultString(rental.AvailabilityStatus, schema.StatusAvailable),
		Images:             schema.OrEmpty(images),
		AvgRating:          rating.AvgRating,
		ReviewCount:        rating.ReviewCount,
		CreatedAt:          rental.CreatedAt,
	}
	if rental.User != nil {
		info.OwnerName = rental.User.Name
		info.OwnerPhone = rental.User.Phone
		info.OwnerLocation = rental.User.Location
	}
	return info
}

func convertRentalFeedback(feedbacks []schema.RentalFeedback) []rentalFeedback {
	res := make([]rentalFeedback, 0, len(feedbacks))
	for _, fb := range feedbacks {
		res = append(res, rentalFeedback{
			Id:           fb.Id,
			ReviewerName: defaultString(fb.ReviewerName, "Anonymous"),
			Rating:       fb.Rating,
			Comment:      fb.Comment,
			CreatedAt:    fb.CreatedAt,
		})
	}
	return res
}

type listRentalsResponse struct {
	utils.Status
	Rentals []rentalInfo `json:"rentals"`
}

func (s *RentalService) List(w http.ResponseWriter, r *http.Request) {
	var rentals []schema.RentalItem
	result := s.db.Preload("User").Order("created_at DESC, id DESC").Find(&rentals)
	if result.Error != nil {
		writeError(w, dbError("sql error listing rentals", result.Error))
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

	res := make([]rentalInfo, 0, len(rentals))
	for _, rental := range rentals {
		res = append(res, convertRental(rental, attachments[rental.Id].Images, ratings[rental.Id]))
	}

	utils.WriteJsonResponse(w, http.StatusOK, listRentalsResponse{Status: utils.Success(""), Rentals: res})
}

type createRentalRequest struct {
	Name               string     `json:"name"`
	Category           string     `json:"category"`
	Description        string     `json:"description"`
	PricePerHour       *flexFloat `json:"price_per_hour"`
	PricePerDay        flexFloat  `json:"price_per_day"`
	Location           string     `json:"location"`
	AvailabilityStatus string     `json:"availability_status"`
	Images             []string   `json:"images"`
}

type createRentalResponse struct {
	utils.Status
	RentalId uint `json:"rental_id"`
}

func (s *RentalService) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var params createRentalRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	params.Name = strings.TrimSpace(params.Name)
	params.Category = strings.TrimSpace(params.Category)
	params.Location = strings.TrimSpace(params.Location)

	if params.Name == "" || params.Category == "" || params.PricePerDay == 0 || params.Location == "" {
		utils.WriteError(w, "Name, category, price per day, and location are required", http.StatusBadRequest)
		return
	}
	if params.PricePerDay < 0 {
		utils.WriteError(w, "Price must be greater than 0", http.StatusBadRequest)
		return
	}
	if err := s.ingestor.CheckOwned(params.Images, storage.ProductsDir, uploadPrefix(user.Id)); err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rental := schema.RentalItem{
		UserId:             user.Id,
		Name:               params.Name,
		Category:           params.Category,
		Description:        strings.TrimSpace(params.Description),
		PricePerDay:        float64(params.PricePerDay),
		Location:           params.Location,
		AvailabilityStatus: defaultString(strings.TrimSpace(params.AvailabilityStatus), schema.StatusAvailable),
	}
	if params.PricePerHour != nil && *params.PricePerHour > 0 {
		perHour := float64(*params.PricePerHour)
		rental.PricePerHour = &perHour
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if result := txn.Create(&rental); result.Error != nil {
			return dbError("sql error creating rental", result.Error, "user_id", user.Id)
		}
		if attachments := schema.NewAttachments(schema.RentalItemType, rental.Id, params.Images, nil); len(attachments) > 0 {
			if result := txn.Create(&attachments); result.Error != nil {
				return dbError("sql error saving rental images", result.Error, "rental_id", rental.Id)
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("created rental", "rental_id", rental.Id, "user_id", user.Id)

	publishEvent(s.publisher, notify.Event{
		Category:        schema.RentalPosted,
		Title:           "New Rental Item Available",
		Message:         fmt.Sprintf("%v (%v) is now available for rent", rental.Name, rental.Category),
		RelatedItemId:   rental.Id,
		RelatedItemType: schema.RentalItemType,
		ExcludeUserId:   &user.Id,
	})

	utils.WriteJsonResponse(w, http.StatusCreated, createRentalResponse{
		Status:   utils.Success("Rental item created successfully"),
		RentalId: rental.Id,
	})
}

type rentalResponse struct {
	utils.Status
	Rental rentalInfo `json:"rental"`
}

func (s *RentalService) Get(w http.ResponseWriter, r *http.Request) {
	rentalId, err := utils.URLParamUint(r, "rental_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rental, err := schema.GetRental(rentalId, s.db, true)
	if err != nil {
		writeError(w, lookupError(err, schema.ErrRentalNotFound))
		return
	}

	feedbacks, summary, err := s.feedbackFor(rentalId)
	if err != nil {
		writeError(w, err)
		return
	}

	attachments, err := schema.LoadAttachments(s.db, schema.RentalItemType, []uint{rentalId})
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	info := convertRental(rental, attachments[rentalId].Images, summary)
	info.Feedbacks = convertRentalFeedback(feedbacks)

	utils.WriteJsonResponse(w, http.StatusOK, rentalResponse{Status: utils.Success(""), Rental: info})
}

func (s *RentalService) feedbackFor(rentalId uint) ([]schema.RentalFeedback, schema.RatingSummary, error) {
	var feedbacks []schema.RentalFeedback
	result := s.db.Where("rental_id = ?", rentalId).Order("created_at DESC, id DESC").Find(&feedbacks)
	if result.Error != nil {
		return nil, schema.RatingSummary{}, dbError("sql error listing rental feedback", result.Error, "rental_id", rentalId)
	}

	summary, err := schema.GetRatingSummary(s.db, "rental_feedback", "rental_id = ?", rentalId)
	if err != nil {
		return nil, schema.RatingSummary{}, CodedError(err, http.StatusInternalServerError)
	}

	return feedbacks, summary, nil
}

func (s *RentalService) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	rentalId, err := utils.URLParamUint(r, "rental_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var removed []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		rental, err := schema.GetRental(rentalId, txn, false)
		if err != nil {
			return lookupError(err, schema.ErrRentalNotFound)
		}
		if err := requireOwner(rental.UserId, user, ErrUnauthorized); err != nil {
			return err
		}

		var mediaRows []schema.RentalMedia
		if result := txn.Where("rental_id = ?", rentalId).Find(&mediaRows); result.Error != nil {
			return dbError("sql error loading rental media", result.Error, "rental_id", rentalId)
		}
		for _, m := range mediaRows {
			removed = append(removed, m.MediaPath)
		}

		attachments, err := schema.LoadAttachments(txn, schema.RentalItemType, []uint{rentalId})
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		removed = append(removed, attachments[rentalId].Images...)

		if result := txn.Where("rental_id = ?", rentalId).Delete(&schema.RentalFeedback{}); result.Error != nil {
			return dbError("sql error deleting rental feedback", result.Error, "rental_id", rentalId)
		}
		if result := txn.Where("rental_id = ?", rentalId).Delete(&schema.RentalMedia{}); result.Error != nil {
			return dbError("sql error deleting rental media", result.Error, "rental_id", rentalId)
		}
		if err := schema.DeleteAttachments(txn, schema.RentalItemType, rentalId); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if result := txn.Delete(&schema.RentalItem{}, rentalId); result.Error != nil {
			return dbError("sql error deleting rental", result.Error, "rental_id", rentalId)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	for _, url := range removed {
		_ = s.ingestor.Remove(url)
	}

	utils.WriteSuccess(w, "Rental item deleted successfully")
}

type rentalFeedbackResponse struct {
	utils.Status
	AvgRating   float64          `json:"avg_rating"`
	ReviewCount int64            `json:"review_count"`
	Feedbacks   []rentalFeedback `json:"feedbacks"`
}

func (s *RentalService) ListFeedback(w http.ResponseWriter, r *http.Request) {
	rentalId, err := utils.URLParamUint(r, "rental_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := schema.GetRental(rentalId, s.db, false); err != nil {
		writeError(w, lookupError(err, schema.ErrRentalNotFound))
		return
	}

	feedbacks, summary, err := s.feedbackFor(rentalId)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, rentalFeedbackResponse{
		Status:      utils.Success(""),
		AvgRating:   summary.AvgRating,
		ReviewCount: summary.ReviewCount,
		Feedbacks:   convertRentalFeedback(feedbacks),
	})
}

type submitRentalFeedbackRequest struct {
	Rating       interface{} `json:"rating"`
	Comment      string      `json:"comment"`
	ReviewerName string      `json:"reviewer_name"`
}

func (s *RentalService) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	rentalId, err := utils.URLParamUint(r, "rental_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params submitRentalFeedbackRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if _, err := schema.GetRental(rentalId, s.db, false); err != nil {
		writeError(w, lookupError(err, schema.ErrRentalNotFound))
		return
	}

	rating, err := parseJsonRating(params.Rating)
	if err != nil {
		writeError(w, err)
		return
	}

	user, loggedIn := auth.OptionalUser(r)
	reviewer := strings.TrimSpace(params.ReviewerName)
	if reviewer == "" && loggedIn {
		reviewer = user.Name
	}

	feedback := schema.RentalFeedback{
		RentalId:     rentalId,
		UserId:       userIdPtr(user, loggedIn),
		ReviewerName: defaultString(reviewer, "Anonymous"),
		Rating:       rating,
		Comment:      strings.TrimSpace(params.Comment),
	}

	if result := s.db.Create(&feedback); result.Error != nil {
		writeError(w, dbError("sql error creating rental feedback", result.Error, "rental_id", rentalId))
		return
	}

	summary, err := schema.GetRatingSummary(s.db, "rental_feedback", "rental_id = ?", rentalId)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, submitFeedbackResponse{
		Status:      utils.Success("Feedback submitted successfully"),
		FeedbackId:  feedback.Id,
		AvgRating:   summary.AvgRating,
		ReviewCount: summary.ReviewCount,
	})
}

func (s *RentalService) DeleteFeedback(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	rentalId, err := utils.URLParamUint(r, "rental_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}
	feedbackId, err := utils.URLParamUint(r, "feedback_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var feedback schema.RentalFeedback
		result := txn.Limit(1).Find(&feedback, "id = ? AND rental_id = ?", feedbackId, rentalId)
		if result.Error != nil {
			return dbError("sql error loading rental feedback", result.Error, "feedback_id", feedbackId)
		}
		if result.RowsAffected == 0 {
			return CodedError(schema.ErrFeedbackNotFound, http.StatusNotFound)
		}

		rental, err := schema.GetRental(rentalId, txn, false)
		if err != nil {
			return lookupError(err, schema.ErrRentalNotFound)
		}

		isAuthor := feedback.UserId != nil && *feedback.UserId == user.Id
		if !isAuthor && rental.UserId != user.Id {
			return CodedError(ErrUnauthorized, http.StatusForbidden)
		}

		if result := txn.Delete(&feedback); result.Error != nil {
			return dbError("sql error deleting rental feedback", result.Error, "feedback_id", feedbackId)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteSuccess(w, "Feedback deleted successfully")
}

type rentalMedia struct {
	Id         uint      `json:"id"`
	RentalId   uint      `json:"rental_id"`
	MediaType  string    `json:"media_type"`
	MediaPath  string    `json:"media_path"`
	Filename   string    `json:"filename"`
	FileSize   int64     `json:"file_size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func convertRentalMedia(m schema.RentalMedia) rentalMedia {
	return rentalMedia{
		Id:         m.Id,
		RentalId:   m.RentalId,
		MediaType:  m.MediaType,
		MediaPath:  m.MediaPath,
		Filename:   m.Filename,
		FileSize:   m.FileSize,
		UploadedAt: m.UploadedAt,
	}
}

type rentalMediaResponse struct {
	utils.Status
	Media      []rentalMedia `json:"media"`
	Images     []rentalMedia `json:"images"`
	Videos     []rentalMedia `json:"videos"`
	TotalCount int           `json:"total_count"`
	ImageCount int           `json:"image_count"`
	VideoCount int           `json:"video_count"`
}

func (s *RentalService) ListMedia(w http.ResponseWriter, r *http.Request) {
	rentalId, err := utils.URLParamUint(r, "rental_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := schema.GetRental(rentalId, s.db, false); err != nil {
		writeError(w, lookupError(err, schema.ErrRentalNotFound))
		return
	}

	var rows []schema.RentalMedia
	result := s.db.Where("rental_id = ?", rentalId).Order("uploaded_at DESC, id DESC").Find(&rows)
	if result.Error != nil {
		writeError(w, dbError("sql error listing rental media", result.Error, "rental_id", rentalId))
		return
	}

	res := rentalMediaResponse{
		Status: utils.Success(""),
		Media:  make([]rentalMedia, 0, len(rows)),
		Images: []rentalMedia{},
		Videos: []rentalMedia{},
	}
	for _, row := range rows {
		m := convertRentalMedia(row)
		res.Media = append(res.Media, m)
		if m.MediaType == schema.VideoMedia {
			res.Videos = append(res.Videos, m)
		} else {
			res.Images = append(res.Images, m)
		}
	}
	res.TotalCount = len(res.Media)
	res.ImageCount = len(res.Images)
	res.VideoCount = len(res.Videos)

	utils.WriteJsonResponse(w, http.StatusOK, res)
}

type uploadMediaResponse struct {
	utils.Status
	Uploaded []rentalMedia `json:"uploaded"`
	Errors   []string      `json:"errors"`
}

func (s *RentalService) UploadMedia(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	rentalId, err := utils.URLParamUint(r, "rental_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rental, err := schema.GetRental(rentalId, s.db, false)
	if err != nil {
		writeError(w, lookupError(err, schema.ErrRentalNotFound))
		return
	}
	if err := requireOwner(rental.UserId, user, ErrNotRentalOwner); err != nil {
		writeError(w, err)
		return
	}

	if !parseForm(w, r) {
		return
	}
	files := formFiles(r, "media")
	if len(files) == 0 {
		utils.WriteError(w, ErrNoMediaFile.Error(), http.StatusBadRequest)
		return
	}
	named := 0
	for _, fh := range files {
		if fh != nil && fh.Filename != "" {
			named++
		}
	}
	if named == 0 {
		utils.WriteError(w, ErrNoFilesChosen.Error(), http.StatusBadRequest)
		return
	}

	saved, errs := s.ingestor.SaveAll(files, storage.RentalsDir, fmt.Sprintf("rental_%d", rentalId), media.ImagesAndVideos)
	if len(saved) == 0 {
		utils.WriteJsonResponse(w, http.StatusBadRequest, uploadMediaResponse{
			Status:   utils.Failure(ErrNothingStored.Error()),
			Uploaded: []rentalMedia{},
			Errors:   errs,
		})
		return
	}

	rows := make([]schema.RentalMedia, 0, len(saved))
	for _, file := range saved {
		rows = append(rows, schema.RentalMedia{
			RentalId:  rentalId,
			MediaType: file.Kind,
			MediaPath: file.Url,
			Filename:  file.Filename,
			FileSize:  file.Size,
		})
	}

	if result := s.db.Create(&rows); result.Error != nil {
		for _, file := range saved {
			_ = s.ingestor.Remove(file.Url)
		}
		writeError(w, dbError("sql error saving rental media", result.Error, "rental_id", rentalId))
		return
	}

	uploaded := make([]rentalMedia, 0, len(rows))
	for _, row := range rows {
		uploaded = append(uploaded, convertRentalMedia(row))
	}
	if len(errs) == 0 {
		errs = nil
	}

	utils.WriteJsonResponse(w, http.StatusCreated, uploadMediaResponse{
		Status:   utils.Success(fmt.Sprintf("%d file(s) uploaded successfully", len(uploaded))),
		Uploaded: uploaded,
		Errors:   errs,
	})
}

func (s *RentalService) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	rentalId, err := utils.URLParamUint(r, "rental_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}
	mediaId, err := utils.URLParamUint(r, "media_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var removed schema.RentalMedia
	err = s.db.Transaction(func(txn *gorm.DB) error {
		rental, err := schema.GetRental(rentalId, txn, false)
		if err != nil {
			return lookupError(err, schema.ErrRentalNotFound)
		}
		if err := requireOwner(rental.UserId, user, ErrUnauthorized); err != nil {
			return err
		}

		result := txn.Limit(1).Find(&removed, "id = ? AND rental_id = ?", mediaId, rentalId)
		if result.Error != nil {
			return dbError("sql error loading rental media", result.Error, "media_id", mediaId)
		}
		if result.RowsAffected == 0 {
			return CodedError(schema.ErrMediaNotFound, http.StatusNotFound)
		}

		if result := txn.Delete(&removed); result.Error != nil {
			return dbError("sql error deleting rental media", result.Error, "media_id", mediaId)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	_ = s.ingestor.Remove(removed.MediaPath)

	utils.WriteSuccess(w, "Media deleted successfully")
}
