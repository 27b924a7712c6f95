package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Status is the envelope shared by every JSON response. Response types embed
// it so that payload fields sit next to success and message.
type Status struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func Success(message string) Status {
	return Status{Success: true, Message: message}
}

func Failure(message string) Status {
	return Status{Success: false, Message: message}
}

func ParseRequestBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dest)
	if err != nil {
		if errors.Is(err, io.EOF) {
			WriteError(w, "No data provided", http.StatusBadRequest)
			return false
		}
		slog.Error("error parsing request body", "error", err)
		WriteError(w, fmt.Sprintf("error parsing request body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func WriteJsonResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
	}
}

func WriteSuccess(w http.ResponseWriter, message string) {
	WriteJsonResponse(w, http.StatusOK, Success(message))
}

func WriteError(w http.ResponseWriter, message string, code int) {
	WriteJsonResponse(w, code, Failure(message))
}

func URLParam(r *http.Request, key string) (string, error) {
	param := chi.URLParam(r, key)
	if len(param) == 0 {
		return "", fmt.Errorf("missing {%v} url parameter", key)
	}
	return param, nil
}

func URLParamUint(r *http.Request, key string) (uint, error) {
	param, err := URLParam(r, key)
	if err != nil {
		return 0, err
	}

	id, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id '%v' provided for {%v}", param, key)
	}

	return uint(id), nil
}

func QueryInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}
