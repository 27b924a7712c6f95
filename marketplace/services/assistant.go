package services

import (
	"errors"
	"localfarmer/llm_gateway"
	"localfarmer/utils"
	"localfarmer/utils/logging"
	"log/slog"
	"net/http"
	"strings"
)

var (
	ErrMessageRequired   = errors.New("Message is required")
	ErrCropNameRequired  = errors.New("Crop name is required")
	ErrCropDetailsFailed = errors.New("Could not load detailed information. Please try again later.")
)

// AssistantService answers farming questions through the llm gateway.
type AssistantService struct {
	gateway *llm_gateway.Gateway
}

type chatRequest struct {
	Message     string `json:"message"`
	Language    string `json:"language"`
	CropContext string `json:"crop_context"`
}

type chatResponse struct {
	utils.Status
	Response string `json:"response"`
}

func (s *AssistantService) Chat(w http.ResponseWriter, r *http.Request) {
	var params chatRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	message := strings.TrimSpace(params.Message)
	if message == "" {
		utils.WriteError(w, ErrMessageRequired.Error(), http.StatusBadRequest)
		return
	}

	prompt := llm_gateway.Prompt{
		System: chatPrompt(strings.TrimSpace(params.Language), strings.TrimSpace(params.CropContext)),
		User:   message,
	}

	reply, err := s.gateway.Run(r.Context(), llm_gateway.ChatChain, prompt)
	if err != nil {
		slog.Error("ai chat failed", "error", err, "code", logging.LLM_ATTEMPT)
		utils.WriteError(w, llm_gateway.ChatFailureMessage(err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, chatResponse{Status: utils.Success(""), Response: reply})
}

type cropDetailsRequest struct {
	CropName string `json:"crop_name"`
}

type cropDetailsResponse struct {
	utils.Status
	Details string `json:"details"`
}

func (s *AssistantService) CropDetails(w http.ResponseWriter, r *http.Request) {
	var params cropDetailsRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	crop := strings.TrimSpace(params.CropName)
	if crop == "" {
		utils.WriteError(w, ErrCropNameRequired.Error(), http.StatusBadRequest)
		return
	}

	prompt := llm_gateway.Prompt{System: cropDetailsSystemPrompt, User: cropDetailsQuestion(crop)}

	details, err := s.gateway.Run(r.Context(), llm_gateway.CropDetailsChain, prompt)
	if err != nil {
		slog.Error("crop details failed", "crop", crop, "error", err, "code", logging.LLM_ATTEMPT)
		utils.WriteError(w, ErrCropDetailsFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, cropDetailsResponse{Status: utils.Success(""), Details: details})
}
