package services

import (
	"localfarmer/marketplace/schema"
	"localfarmer/utils"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type ContactService struct {
	db *gorm.DB
}

func (s *ContactService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", s.Send)

	return r
}

type contactRequest struct {
	Name        string `json:"name"`
	ContactInfo string `json:"contact_info"`
	Description string `json:"description"`
}

func (s *ContactService) Send(w http.ResponseWriter, r *http.Request) {
	var params contactRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	message := schema.ContactMessage{
		Name:        strings.TrimSpace(params.Name),
		ContactInfo: strings.TrimSpace(params.ContactInfo),
		Description: strings.TrimSpace(params.Description),
	}
	if message.Name == "" || message.ContactInfo == "" || message.Description == "" {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}

	if result := s.db.Create(&message); result.Error != nil {
		writeError(w, dbError("sql error saving contact message", result.Error))
		return
	}

	slog.Info("received contact message", "message_id", message.Id)

	utils.WriteJsonResponse(w, http.StatusCreated, utils.Success("Message sent successfully"))
}
