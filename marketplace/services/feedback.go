package services

import (
	"errors"
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/schema"
	"localfarmer/utils"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

var ErrFarmerNotFound = errors.New("Farmer not found")

// FeedbackService accepts reviews of a farmer that are not tied to a product
// listing page.
type FeedbackService struct {
	db *gorm.DB
}

func (s *FeedbackService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", s.Submit)

	return r
}

type submitOwnerFeedbackRequest struct {
	FarmerName    string      `json:"farmer_name"`
	ReviewerName  string      `json:"reviewer_name"`
	ReviewerPhone string      `json:"reviewer_phone"`
	Rating        interface{} `json:"rating"`
	Comment       string      `json:"comment"`
	ProductId     *uint       `json:"product_id"`
}

type submitOwnerFeedbackResponse struct {
	utils.Status
	FeedbackId uint `json:"feedback_id"`
}

func (s *FeedbackService) Submit(w http.ResponseWriter, r *http.Request) {
	var params submitOwnerFeedbackRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	params.FarmerName = strings.TrimSpace(params.FarmerName)
	params.ReviewerName = strings.TrimSpace(params.ReviewerName)

	if params.FarmerName == "" || params.ReviewerName == "" || params.Rating == nil {
		utils.WriteError(w, "Farmer name, reviewer name and rating are required", http.StatusBadRequest)
		return
	}

	rating, err := parseJsonRating(params.Rating)
	if err != nil {
		writeError(w, err)
		return
	}

	var farmer schema.User
	result := s.db.Limit(1).Find(&farmer, "name = ?", params.FarmerName)
	if result.Error != nil {
		writeError(w, dbError("sql error finding farmer by name", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		utils.WriteError(w, ErrFarmerNotFound.Error(), http.StatusNotFound)
		return
	}

	feedback := schema.UserFeedback{
		UserId:        userIdPtr(auth.OptionalUser(r)),
		FarmerId:      farmer.Id,
		ProductId:     params.ProductId,
		ReviewerName:  params.ReviewerName,
		ReviewerPhone: strings.TrimSpace(params.ReviewerPhone),
		Rating:        rating,
		Comment:       strings.TrimSpace(params.Comment),
	}

	if result := s.db.Create(&feedback); result.Error != nil {
		if schema.IsDuplicateKey(result.Error) {
			utils.WriteError(w, ErrDuplicateFeedback.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, dbError("sql error creating feedback", result.Error, "farmer_id", farmer.Id))
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, submitOwnerFeedbackResponse{
		Status:     utils.Success("Feedback submitted successfully"),
		FeedbackId: feedback.Id,
	})
}
