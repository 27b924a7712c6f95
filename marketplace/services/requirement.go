package services

import (
	"fmt"
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/notify"
	"localfarmer/marketplace/schema"
	"localfarmer/utils"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// RequirementService serves buyer demand posts for produce.
type RequirementService struct {
	db        *gorm.DB
	publisher notify.Publisher
}

func (s *RequirementService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.List)
	r.Post("/", s.Create)

	return r
}

type productRequirement struct {
	Id                    uint      `json:"id"`
	CustomerName          string    `json:"customer_name"`
	ProductName           string    `json:"product_name"`
	Quantity              string    `json:"quantity"`
	Location              string    `json:"location"`
	PhoneNumber           string    `json:"phone_number"`
	PinCode               string    `json:"pin_code"`
	SpecialInstructions   string    `json:"special_instructions"`
	PreferredDeliveryDate string    `json:"preferred_delivery_date"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"created_at"`
}

func convertProductRequirement(req schema.CustomerRequirement) productRequirement {
	return productRequirement{
		Id:                    req.Id,
		CustomerName:          req.CustomerName,
		ProductName:           req.ProductName,
		Quantity:              req.Quantity,
		Location:              req.Location,
		PhoneNumber:           req.PhoneNumber,
		PinCode:               req.PinCode,
		SpecialInstructions:   req.SpecialInstructions,
		PreferredDeliveryDate: req.PreferredDeliveryDate,
		Status:                req.Status,
		CreatedAt:             req.CreatedAt,
	}
}

type productRequirementsResponse struct {
	utils.Status
	Requirements []productRequirement `json:"requirements"`
}

func (s *RequirementService) List(w http.ResponseWriter, r *http.Request) {
	var requirements []schema.CustomerRequirement
	if result := s.db.Order("created_at DESC, id DESC").Find(&requirements); result.Error != nil {
		writeError(w, dbError("sql error listing requirements", result.Error))
		return
	}

	res := make([]productRequirement, 0, len(requirements))
	for _, req := range requirements {
		res = append(res, convertProductRequirement(req))
	}

	utils.WriteJsonResponse(w, http.StatusOK, productRequirementsResponse{Status: utils.Success(""), Requirements: res})
}

type createRequirementRequest struct {
	CustomerName          string `json:"customer_name"`
	ProductName           string `json:"product_name"`
	Quantity              string `json:"quantity"`
	Location              string `json:"location"`
	PhoneNumber           string `json:"phone_number"`
	PinCode               string `json:"pin_code"`
	SpecialInstructions   string `json:"special_instructions"`
	PreferredDeliveryDate string `json:"preferred_delivery_date"`
}

type createRequirementResponse struct {
	utils.Status
	RequirementId uint `json:"requirement_id"`
}

func (s *RequirementService) Create(w http.ResponseWriter, r *http.Request) {
	var params createRequirementRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	for _, field := range []*string{&params.CustomerName, &params.ProductName, &params.Quantity, &params.Location, &params.PhoneNumber, &params.PinCode, &params.SpecialInstructions, &params.PreferredDeliveryDate} {
		*field = strings.TrimSpace(*field)
	}

	if params.CustomerName == "" || params.ProductName == "" || params.Quantity == "" || params.Location == "" || params.PhoneNumber == "" {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}

	requirement := schema.CustomerRequirement{
		UserId:                userIdPtr(auth.OptionalUser(r)),
		CustomerName:          params.CustomerName,
		ProductName:           params.ProductName,
		Quantity:              params.Quantity,
		Location:              params.Location,
		PhoneNumber:           params.PhoneNumber,
		PinCode:               params.PinCode,
		SpecialInstructions:   params.SpecialInstructions,
		PreferredDeliveryDate: params.PreferredDeliveryDate,
		Status:                schema.StatusActive,
	}

	if result := s.db.Create(&requirement); result.Error != nil {
		writeError(w, dbError("sql error creating requirement", result.Error))
		return
	}

	slog.Info("created requirement", "requirement_id", requirement.Id)

	publishEvent(s.publisher, notify.Event{
		Category:        schema.ProductRequirementPosted,
		Title:           "New Product Requirement",
		Message:         fmt.Sprintf("%v needs %v of %v in %v", requirement.CustomerName, requirement.Quantity, requirement.ProductName, requirement.Location),
		RelatedItemId:   requirement.Id,
		RelatedItemType: schema.ProductRequirementItem,
	})

	utils.WriteJsonResponse(w, http.StatusCreated, createRequirementResponse{
		Status:        utils.Success("Requirement posted successfully"),
		RequirementId: requirement.Id,
	})
}

// RentalRequirementService serves farmer demand posts for equipment.
type RentalRequirementService struct {
	db        *gorm.DB
	publisher notify.Publisher
}

func (s *RentalRequirementService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.List)
	r.Post("/", s.Create)

	return r
}

type rentalRequirement struct {
	Id             uint      `json:"id"`
	FarmerName     string    `json:"farmer_name"`
	PhoneNumber    string    `json:"phone_number"`
	RentalCategory string    `json:"rental_category"`
	FieldArea      string    `json:"field_area"`
	Village        string    `json:"village"`
	Mandal         string    `json:"mandal"`
	District       string    `json:"district"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

func convertRentalRequirement(req schema.RentalRequirement) rentalRequirement {
	return rentalRequirement{
		Id:             req.Id,
		FarmerName:     req.FarmerName,
		PhoneNumber:    req.PhoneNumber,
		RentalCategory: req.RentalCategory,
		FieldArea:      req.FieldArea,
		Village:        req.Village,
		Mandal:         req.Mandal,
		District:       req.District,
		Status:         req.Status,
		CreatedAt:      req.CreatedAt,
	}
}

type rentalRequirementsResponse struct {
	utils.Status
	Requirements []rentalRequirement `json:"requirements"`
}

func (s *RentalRequirementService) List(w http.ResponseWriter, r *http.Request) {
	var requirements []schema.RentalRequirement
	result := s.db.Where("status = ?", schema.StatusActive).Order("created_at DESC, id DESC").Find(&requirements)
	if result.Error != nil {
		writeError(w, dbError("sql error listing rental requirements", result.Error))
		return
	}

	res := make([]rentalRequirement, 0, len(requirements))
	for _, req := range requirements {
		res = append(res, convertRentalRequirement(req))
	}

	utils.WriteJsonResponse(w, http.StatusOK, rentalRequirementsResponse{Status: utils.Success(""), Requirements: res})
}

type createRentalRequirementRequest struct {
	FarmerName     string `json:"farmer_name"`
	PhoneNumber    string `json:"phone_number"`
	RentalCategory string `json:"rental_category"`
	FieldArea      string `json:"field_area"`
	Village        string `json:"village"`
	Mandal         string `json:"mandal"`
	District       string `json:"district"`
}

// requirementLocation renders the place named in a rental requirement
// notification.
func requirementLocation(village, mandal, district string) string {
	switch {
	case village != "" && mandal != "" && district != "":
		return fmt.Sprintf("%v, %v, %v", village, mandal, district)
	case district != "":
		return district
	default:
		return village
	}
}

func (s *RentalRequirementService) Create(w http.ResponseWriter, r *http.Request) {
	var params createRentalRequirementRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	for _, field := range []*string{&params.FarmerName, &params.PhoneNumber, &params.RentalCategory, &params.FieldArea, &params.Village, &params.Mandal, &params.District} {
		*field = strings.TrimSpace(*field)
	}

	if params.FarmerName == "" || params.PhoneNumber == "" || params.RentalCategory == "" {
		utils.WriteError(w, "Farmer name, phone number, and rental category are required", http.StatusBadRequest)
		return
	}

	requirement := schema.RentalRequirement{
		UserId:         userIdPtr(auth.OptionalUser(r)),
		FarmerName:     params.FarmerName,
		PhoneNumber:    params.PhoneNumber,
		RentalCategory: params.RentalCategory,
		FieldArea:      params.FieldArea,
		Village:        params.Village,
		Mandal:         params.Mandal,
		District:       params.District,
		Status:         schema.StatusActive,
	}

	if result := s.db.Create(&requirement); result.Error != nil {
		writeError(w, dbError("sql error creating rental requirement", result.Error))
		return
	}

	publishEvent(s.publisher, notify.Event{
		Category:        schema.RentalRequirementPosted,
		Title:           "New Rental Requirement",
		Message:         fmt.Sprintf("%v needs %v rental in %v", requirement.FarmerName, requirement.RentalCategory, requirementLocation(requirement.Village, requirement.Mandal, requirement.District)),
		RelatedItemId:   requirement.Id,
		RelatedItemType: schema.RentalRequirementItem,
	})

	utils.WriteJsonResponse(w, http.StatusCreated, createRequirementResponse{
		Status:        utils.Success("Rental requirement posted successfully"),
		RequirementId: requirement.Id,
	})
}
