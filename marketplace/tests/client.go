package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"localfarmer/marketplace/auth"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
)

type formFile struct {
	field    string
	filename string
	content  []byte
}

type httpTestRequest struct {
	api    http.Handler
	client *client

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader

	fields map[string]string
	files  []formFile
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) Body(body io.Reader) *httpTestRequest {
	r.body = body
	return r
}

func (r *httpTestRequest) Field(key, value string) *httpTestRequest {
	if r.fields == nil {
		r.fields = make(map[string]string)
	}
	r.fields[key] = value
	return r
}

func (r *httpTestRequest) File(field, filename string, content []byte) *httpTestRequest {
	r.files = append(r.files, formFile{field: field, filename: filename, content: content})
	return r
}

func (r *httpTestRequest) encodeForm() error {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for k, v := range r.fields {
		if err := writer.WriteField(k, v); err != nil {
			return err
		}
	}
	for _, file := range r.files {
		part, err := writer.CreateFormFile(file.field, file.filename)
		if err != nil {
			return err
		}
		if _, err := part.Write(file.content); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}
	r.body = body
	r.Header("Content-Type", writer.FormDataContentType())
	return nil
}

// Do sends the request and parses the response body into result whatever the
// status, passing nil indicates that the body is ignored. The status code is
// returned for the caller to check.
func (r *httpTestRequest) Do(result interface{}) (int, error) {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return 0, fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
		r.Header("Content-Type", "application/json")
	} else if r.fields != nil || r.files != nil {
		if err := r.encodeForm(); err != nil {
			return 0, fmt.Errorf("error encoding form body for endpoint %v: %w", r.endpoint, err)
		}
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	for k, v := range r.headers {
		req.Header.Add(k, v)
	}
	if r.client != nil && r.client.session != nil {
		req.AddCookie(r.client.session)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if r.client != nil {
		r.client.updateSession(res.Cookies())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return res.StatusCode, fmt.Errorf("error parsing %v response from endpoint %v (status %d): %w", r.method, r.endpoint, res.StatusCode, err)
		}
	}

	return res.StatusCode, nil
}

// client keeps the session cookie between requests like a browser would.
type client struct {
	api     chi.Router
	session *http.Cookie
}

func (c *client) updateSession(cookies []*http.Cookie) {
	for _, cookie := range cookies {
		if cookie.Name != auth.SessionCookieName {
			continue
		}
		if cookie.Value == "" || cookie.MaxAge < 0 {
			c.session = nil
		} else {
			c.session = cookie
		}
	}
}

func (c *client) request(method, endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, method, endpoint)
	r.client = c
	return r
}

func (c *client) Get(endpoint string) *httpTestRequest {
	return c.request("GET", endpoint)
}

func (c *client) Post(endpoint string) *httpTestRequest {
	return c.request("POST", endpoint)
}

func (c *client) Put(endpoint string) *httpTestRequest {
	return c.request("PUT", endpoint)
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	return c.request("DELETE", endpoint)
}

type status struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// expect fails with the response message unless the request returned code.
func expect(code int, want int, err error, res status) error {
	if err != nil {
		return err
	}
	if code != want {
		return fmt.Errorf("expected status %d, got %d: %v", want, code, res.Message)
	}
	return nil
}

type registerInfo struct {
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

type userInfo struct {
	Id                uint   `json:"id"`
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	Location          string `json:"location"`
	UserType          string `json:"userType"`
	PreferredLanguage string `json:"preferredLanguage"`
}

type userResponse struct {
	status
	User userInfo `json:"user"`
}

func (c *client) register(info registerInfo) (userInfo, error) {
	var res userResponse
	code, err := c.Post("/register").Json(info).Do(&res)
	return res.User, expect(code, http.StatusCreated, err, res.status)
}

func (c *client) login(phone, password string) (userInfo, error) {
	var res userResponse
	code, err := c.Post("/login").Json(map[string]string{"phone": phone, "password": password}).Do(&res)
	return res.User, expect(code, http.StatusOK, err, res.status)
}

func (c *client) logout() error {
	var res status
	code, err := c.Post("/logout").Do(&res)
	return expect(code, http.StatusOK, err, res)
}

func (c *client) info() (userInfo, error) {
	var res userResponse
	code, err := c.Get("/user").Do(&res)
	return res.User, expect(code, http.StatusOK, err, res.status)
}

type createdResponse struct {
	status
	ProductId     uint `json:"product_id"`
	RentalId      uint `json:"rental_id"`
	RequirementId uint `json:"requirement_id"`
	FeedbackId    uint `json:"feedback_id"`
	SchemeId      uint `json:"scheme_id"`
	SavedId       uint `json:"saved_id"`
	HistoryId     uint `json:"history_id"`
	Id            uint `json:"id"`
}

func (c *client) upload(filename string, content []byte) (string, error) {
	var res struct {
		status
		Url string `json:"url"`
	}
	code, err := c.Post("/upload").File("file", filename, content).Do(&res)
	return res.Url, expect(code, http.StatusOK, err, res.status)
}

func (c *client) createProduct(name string, quantity, price float64) (uint, error) {
	image, err := c.upload(name+".jpg", []byte("jpeg"))
	if err != nil {
		return 0, err
	}

	var res createdResponse
	code, err := c.Post("/products").Json(map[string]interface{}{
		"category":    "vegetables",
		"name":        name,
		"description": "fresh from the farm",
		"quantity":    quantity,
		"price":       price,
		"images":      []string{image},
	}).Do(&res)
	return res.ProductId, expect(code, http.StatusCreated, err, res.status)
}

func (c *client) createRental(name string, pricePerDay float64) (uint, error) {
	var res createdResponse
	code, err := c.Post("/rentals").Json(map[string]interface{}{
		"name":          name,
		"category":      "tractor",
		"description":   "45 hp with trolley",
		"price_per_day": pricePerDay,
		"location":      "Kondapur",
	}).Do(&res)
	return res.RentalId, expect(code, http.StatusCreated, err, res.status)
}

type notificationInfo struct {
	Id              uint   `json:"id"`
	Category        string `json:"category"`
	Title           string `json:"title"`
	Message         string `json:"message"`
	RelatedItemId   *uint  `json:"related_item_id"`
	RelatedItemType string `json:"related_item_type"`
	IsRead          bool   `json:"is_read"`
}

func (c *client) notifications(category string) ([]notificationInfo, error) {
	var res struct {
		status
		Notifications []notificationInfo `json:"notifications"`
	}
	endpoint := "/notifications"
	if category != "" {
		endpoint += "?category=" + category
	}
	code, err := c.Get(endpoint).Do(&res)
	return res.Notifications, expect(code, http.StatusOK, err, res.status)
}
