package services

import (
	"errors"
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/schema"
	"localfarmer/utils"
	"localfarmer/utils/logging"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

var (
	namePattern     = regexp.MustCompile(`^[A-Za-z\s]+$`)
	phonePattern    = regexp.MustCompile(`^[0-9]{10}$`)
	passwordPattern = regexp.MustCompile(`^[A-Za-z0-9]{3}$`)
)

var (
	ErrEmailAlreadyInUse = errors.New("Email already registered")
	ErrNotAuthenticated  = errors.New("Not authenticated")
)

type UserService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

// Routes serves /user. Register, login and logout are mounted by the
// marketplace next to it so they can be rate limited as a group.
func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.Info)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Put("/", s.Update)
	})

	return r
}

type userInfo struct {
	Id                uint      `json:"id"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone"`
	Village           string    `json:"village"`
	Mandal            string    `json:"mandal"`
	District          string    `json:"district"`
	Location          string    `json:"location"`
	UserType          string    `json:"userType"`
	PreferredLanguage string    `json:"preferredLanguage"`
	CreatedAt         time.Time `json:"created_at"`
	PhoneVerified     *bool     `json:"phone_verified,omitempty"`
}

func convertUser(user schema.User) userInfo {
	return userInfo{
		Id:                user.Id,
		Name:              user.Name,
		Phone:             user.Phone,
		Village:           user.Village,
		Mandal:            user.Mandal,
		District:          user.District,
		Location:          user.Location,
		UserType:          user.UserType,
		PreferredLanguage: user.PreferredLanguage,
		CreatedAt:         user.CreatedAt,
	}
}

type userResponse struct {
	utils.Status
	User userInfo `json:"user"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Village  string `json:"village"`
	Mandal   string `json:"mandal"`
	District string `json:"district"`
	UserType string `json:"userType"`
	Language string `json:"language"`
	Password string `json:"password"`
}

func (req *registerRequest) trim() {
	for _, field := range []*string{&req.Name, &req.Phone, &req.Email, &req.Village, &req.Mandal, &req.District, &req.UserType, &req.Language, &req.Password} {
		*field = strings.TrimSpace(*field)
	}
}

func (req *registerRequest) validate() error {
	for _, field := range []string{req.Name, req.Phone, req.Village, req.Mandal, req.District, req.UserType, req.Language, req.Password} {
		if field == "" {
			return errors.New("All fields are required")
		}
	}
	if !namePattern.MatchString(req.Name) {
		return errors.New("Name must contain only letters")
	}
	if !phonePattern.MatchString(req.Phone) {
		return errors.New("Phone must be 10 digits")
	}
	// Legacy policy kept for existing clients: exactly three alphanumerics.
	if !passwordPattern.MatchString(req.Password) {
		return errors.New("Password must be exactly 3 alphanumeric characters")
	}
	return nil
}

func (s *UserService) Register(w http.ResponseWriter, r *http.Request) {
	var params registerRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	params.trim()

	if err := params.validate(); err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := s.userAuth.CreateUser(auth.NewUser{
		Name:              params.Name,
		Phone:             params.Phone,
		Email:             params.Email,
		Village:           params.Village,
		Mandal:            params.Mandal,
		District:          params.District,
		UserType:          params.UserType,
		PreferredLanguage: params.Language,
		Password:          params.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrPhoneAlreadyInUse) {
			utils.WriteError(w, auth.ErrPhoneAlreadyInUse.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("registration failed", "error", err, "code", logging.AUTH_REGISTER)
		utils.WriteError(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.userAuth.IssueSession(w, user.Id); err != nil {
		utils.WriteError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, userResponse{
		Status: utils.Success("Registration successful"),
		User:   convertUser(user),
	})
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (s *UserService) Login(w http.ResponseWriter, r *http.Request) {
	var params loginRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	params.Phone = strings.TrimSpace(params.Phone)
	params.Password = strings.TrimSpace(params.Password)

	if params.Phone == "" || params.Password == "" {
		utils.WriteError(w, "Mobile number and password are required", http.StatusBadRequest)
		return
	}
	if !phonePattern.MatchString(params.Phone) {
		utils.WriteError(w, "Invalid mobile number format", http.StatusBadRequest)
		return
	}

	user, err := s.userAuth.Login(params.Phone, params.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			utils.WriteError(w, err.Error(), http.StatusUnauthorized)
			return
		}
		utils.WriteError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.userAuth.IssueSession(w, user.Id); err != nil {
		utils.WriteError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, userResponse{
		Status: utils.Success("Login successful"),
		User:   convertUser(user),
	})
}

func (s *UserService) Logout(w http.ResponseWriter, r *http.Request) {
	s.userAuth.ClearSession(w)
	utils.WriteSuccess(w, "Logged out successfully")
}

func (s *UserService) Info(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.SessionUserId(r); !ok {
		utils.WriteError(w, ErrNotAuthenticated.Error(), http.StatusUnauthorized)
		return
	}

	user, ok := auth.OptionalUser(r)
	if !ok {
		utils.WriteError(w, schema.ErrUserNotFound.Error(), http.StatusNotFound)
		return
	}

	info := convertUser(user)
	info.PhoneVerified = &user.PhoneVerified

	utils.WriteJsonResponse(w, http.StatusOK, userResponse{Status: utils.Success(""), User: info})
}

type updateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

type updatedUser struct {
	Id       uint   `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

type updateUserResponse struct {
	utils.Status
	User updatedUser `json:"user"`
}

// saveContactDetails updates the identifying fields of a user, keeping email
// and phone unique across accounts.
func saveContactDetails(db *gorm.DB, userId uint, updates map[string]interface{}) error {
	return db.Transaction(func(txn *gorm.DB) error {
		var taken schema.User
		result := txn.Limit(1).Find(&taken, "email = ? AND id <> ?", updates["email"], userId)
		if result.Error != nil {
			return dbError("sql error checking for existing email", result.Error, "user_id", userId)
		}
		if result.RowsAffected != 0 {
			return CodedError(ErrEmailAlreadyInUse, http.StatusBadRequest)
		}

		result = txn.Model(&schema.User{Id: userId}).Updates(updates)
		if result.Error != nil {
			if schema.IsDuplicateKey(result.Error) {
				return CodedError(auth.ErrPhoneAlreadyInUse, http.StatusBadRequest)
			}
			return dbError("sql error updating user", result.Error, "user_id", userId)
		}
		return nil
	})
}

func (s *UserService) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var params updateUserRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Phone = strings.TrimSpace(params.Phone)
	params.Location = strings.TrimSpace(params.Location)

	if params.Name == "" || params.Email == "" || params.Phone == "" || params.Location == "" {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}

	err := saveContactDetails(s.db, user.Id, map[string]interface{}{
		"name": params.Name, "email": params.Email, "phone": params.Phone, "location": params.Location,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, updateUserResponse{
		Status: utils.Success("Profile updated successfully"),
		User: updatedUser{
			Id: user.Id, Name: params.Name, Email: params.Email, Phone: params.Phone, Location: params.Location,
		},
	})
}
