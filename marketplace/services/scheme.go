package services

import (
	"errors"
	"localfarmer/marketplace/extraction"
	"localfarmer/marketplace/schema"
	"localfarmer/utils"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

var ErrSchemeNameRequired = errors.New("Scheme name is required")

type SchemeService struct {
	db        *gorm.DB
	extractor *extraction.Extractor
	limiter   func(http.Handler) http.Handler
}

// Routes serves the scheme catalog. Deleting a scheme does not require a
// session.
func (s *SchemeService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.List)
	r.Post("/", s.Save)
	r.Delete("/{scheme_id}", s.Delete)

	r.With(s.limiter).Post("/extract", s.Extract)

	return r
}

type schemeInfo struct {
	Id uint `json:"id"`
	extraction.Scheme
	CreatedAt time.Time `json:"created_at"`
}

func convertScheme(scheme schema.GovernmentScheme) schemeInfo {
	return schemeInfo{
		Id: scheme.Id,
		Scheme: extraction.Scheme{
			SchemeName:        scheme.SchemeName,
			StartDate:         scheme.StartDate,
			EndDate:           scheme.EndDate,
			Description:       scheme.Description,
			Benefits:          scheme.Benefits,
			Eligibility:       scheme.Eligibility,
			RequiredDocuments: scheme.RequiredDocuments,
			ApplyLink:         scheme.ApplyLink,
			OfficialWebsite:   scheme.OfficialWebsite,
			State:             scheme.State,
			Category:          scheme.Category,
			LastUpdated:       scheme.LastUpdated,
		},
		CreatedAt: scheme.CreatedAt,
	}
}

type listSchemesResponse struct {
	utils.Status
	Schemes []schemeInfo `json:"schemes"`
}

func (s *SchemeService) List(w http.ResponseWriter, r *http.Request) {
	var schemes []schema.GovernmentScheme
	if result := s.db.Order("created_at DESC, id DESC").Find(&schemes); result.Error != nil {
		writeError(w, dbError("sql error listing schemes", result.Error))
		return
	}

	res := make([]schemeInfo, 0, len(schemes))
	for _, scheme := range schemes {
		res = append(res, convertScheme(scheme))
	}

	utils.WriteJsonResponse(w, http.StatusOK, listSchemesResponse{Status: utils.Success(""), Schemes: res})
}

type saveSchemeResponse struct {
	utils.Status
	SchemeId uint `json:"scheme_id"`
}

func (s *SchemeService) Save(w http.ResponseWriter, r *http.Request) {
	var params extraction.Scheme
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	params.SchemeName = strings.TrimSpace(params.SchemeName)
	if params.SchemeName == "" {
		utils.WriteError(w, ErrSchemeNameRequired.Error(), http.StatusBadRequest)
		return
	}

	scheme := schema.GovernmentScheme{
		SchemeName:        params.SchemeName,
		StartDate:         params.StartDate,
		EndDate:           params.EndDate,
		Description:       params.Description,
		Benefits:          params.Benefits,
		Eligibility:       params.Eligibility,
		RequiredDocuments: params.RequiredDocuments,
		ApplyLink:         params.ApplyLink,
		OfficialWebsite:   params.OfficialWebsite,
		State:             defaultString(strings.TrimSpace(params.State), extraction.DefaultState),
		Category:          params.Category,
		LastUpdated:       params.LastUpdated,
	}

	if result := s.db.Create(&scheme); result.Error != nil {
		writeError(w, dbError("sql error saving scheme", result.Error))
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, saveSchemeResponse{
		Status:   utils.Success("Scheme saved successfully"),
		SchemeId: scheme.Id,
	})
}

func (s *SchemeService) Delete(w http.ResponseWriter, r *http.Request) {
	schemeId, err := utils.URLParamUint(r, "scheme_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := s.db.Delete(&schema.GovernmentScheme{}, schemeId)
	if result.Error != nil {
		writeError(w, dbError("sql error deleting scheme", result.Error, "scheme_id", schemeId))
		return
	}
	if result.RowsAffected == 0 {
		utils.WriteError(w, schema.ErrSchemeNotFound.Error(), http.StatusNotFound)
		return
	}

	utils.WriteSuccess(w, "Scheme deleted successfully")
}

type extractRequest struct {
	Content string `json:"content"`
	Url     string `json:"url"`
}

type extractResponse struct {
	utils.Status
	Schemes []extraction.Scheme `json:"schemes"`
	Count   int                 `json:"count"`
	Source  string              `json:"source"`
	Url     string              `json:"url"`
}

func (s *SchemeService) Extract(w http.ResponseWriter, r *http.Request) {
	var params extractRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	result, err := s.extractor.Extract(r.Context(), strings.TrimSpace(params.Content), strings.TrimSpace(params.Url))
	if err != nil {
		var fetchErr *extraction.FetchError
		switch {
		case errors.Is(err, extraction.ErrNoInput), errors.Is(err, extraction.ErrNoContent), errors.As(err, &fetchErr):
			utils.WriteError(w, err.Error(), http.StatusBadRequest)
		default:
			utils.WriteError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, extractResponse{
		Status:  utils.Success(result.Message),
		Schemes: result.Schemes,
		Count:   len(result.Schemes),
		Source:  result.Source,
		Url:     result.Url,
	})
}
