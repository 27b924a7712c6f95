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
	ErrFeedbackLoginRequired = errors.New("Please login to submit feedback")
	ErrDuplicateFeedback     = errors.New("You have already submitted feedback for this product")
)

type ProductService struct {
	db        *gorm.DB
	storage   storage.Storage
	ingestor  *media.Ingestor
	userAuth  auth.IdentityProvider
	publisher notify.Publisher
}

func (s *ProductService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.List)
	r.Get("/{product_id}/feedback", s.ListFeedback)
	r.With(checkSufficientStorage(s.storage)).Post("/{product_id}/feedback", s.SubmitFeedback)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Post("/", s.Create)
		r.Delete("/{product_id}", s.Delete)
	})

	return r
}

type productInfo struct {
	Id             uint      `json:"id"`
	UserId         uint      `json:"user_id"`
	Category       string    `json:"category"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Quantity       float64   `json:"quantity"`
	Unit           string    `json:"unit"`
	Price          float64   `json:"price"`
	Images         []string  `json:"images"`
	FarmerName     string    `json:"farmer_name"`
	FarmerLocation string    `json:"farmer_location"`
	CreatedAt      time.Time `json:"created_at"`
}

type listProductsResponse struct {
	utils.Status
	Products []productInfo `json:"products"`
}

func (s *ProductService) List(w http.ResponseWriter, r *http.Request) {
	var products []schema.Product
	result := s.db.Preload("User").Order("created_at DESC, id DESC").Find(&products)
	if result.Error != nil {
		writeError(w, dbError("sql error listing products", result.Error))
		return
	}

	attachments, err := schema.LoadAttachments(s.db, schema.ProductItem, listIds(products, func(p schema.Product) uint { return p.Id }))
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	res := make([]productInfo, 0, len(products))
	for _, p := range products {
		info := productInfo{
			Id:          p.Id,
			UserId:      p.UserId,
			Category:    p.Category,
			Name:        p.Name,
			Description: p.Description,
			Quantity:    p.Quantity,
			Unit:        p.Unit,
			Price:       p.Price,
			Images:      schema.OrEmpty(attachments[p.Id].Images),
			CreatedAt:   p.CreatedAt,
		}
		if p.User != nil {
			info.FarmerName = p.User.Name
			info.FarmerLocation = p.User.Location
		}
		res = append(res, info)
	}

	utils.WriteJsonResponse(w, http.StatusOK, listProductsResponse{Status: utils.Success(""), Products: res})
}

type createProductRequest struct {
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Quantity    flexFloat `json:"quantity"`
	Unit        string    `json:"unit"`
	Price       flexFloat `json:"price"`
	Images      []string  `json:"images"`
}

type createProductResponse struct {
	utils.Status
	ProductId uint `json:"product_id"`
}

func (s *ProductService) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var params createProductRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	params.Category = strings.TrimSpace(params.Category)
	params.Name = strings.TrimSpace(params.Name)
	params.Description = strings.TrimSpace(params.Description)
	params.Unit = strings.TrimSpace(params.Unit)

	if params.Category == "" || params.Name == "" || params.Description == "" {
		utils.WriteError(w, "Category, name, and description are required", http.StatusBadRequest)
		return
	}
	if params.Quantity <= 0 || params.Price <= 0 {
		utils.WriteError(w, "Quantity and price must be greater than 0", http.StatusBadRequest)
		return
	}
	if err := s.ingestor.CheckOwned(params.Images, storage.ProductsDir, uploadPrefix(user.Id)); err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	product := schema.Product{
		UserId:      user.Id,
		Category:    params.Category,
		Name:        params.Name,
		Description: params.Description,
		Quantity:    float64(params.Quantity),
		Unit:        defaultString(params.Unit, "kg"),
		Price:       float64(params.Price),
		Status:      schema.StatusActive,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if result := txn.Create(&product); result.Error != nil {
			return dbError("sql error creating product", result.Error, "user_id", user.Id)
		}

		if attachments := schema.NewAttachments(schema.ProductItem, product.Id, params.Images, nil); len(attachments) > 0 {
			if result := txn.Create(&attachments); result.Error != nil {
				return dbError("sql error saving product images", result.Error, "product_id", product.Id)
			}
		}

		record := schema.Transaction{
			UserId:      user.Id,
			Type:        "product_created",
			Description: fmt.Sprintf("Created product: %v", product.Name),
			Amount:      0,
		}
		if result := txn.Create(&record); result.Error != nil {
			return dbError("sql error recording product transaction", result.Error, "product_id", product.Id)
		}

		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("created product", "product_id", product.Id, "user_id", user.Id)

	s.publish(notify.Event{
		Category:        schema.ProductPosted,
		Title:           "New Product Available",
		Message:         fmt.Sprintf("%v (%v) has been posted", product.Name, product.Category),
		RelatedItemId:   product.Id,
		RelatedItemType: schema.ProductItem,
		ExcludeUserId:   &user.Id,
	})

	utils.WriteJsonResponse(w, http.StatusCreated, createProductResponse{
		Status:    utils.Success("Product created successfully"),
		ProductId: product.Id,
	})
}

func (s *ProductService) publish(event notify.Event) {
	publishEvent(s.publisher, event)
}

// publishEvent hands a committed listing to the notification fan-out. A
// failure is logged; the listing itself already exists.
func publishEvent(publisher notify.Publisher, event notify.Event) {
	if err := publisher.Publish(event); err != nil {
		slog.Error("unable to publish notification event", "category", event.Category, "related_item_id", event.RelatedItemId, "error", err)
	}
}

func (s *ProductService) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	productId, err := utils.URLParamUint(r, "product_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var removed schema.AttachmentPaths
	err = s.db.Transaction(func(txn *gorm.DB) error {
		product, err := schema.GetProduct(productId, txn, false)
		if err != nil {
			return lookupError(err, schema.ErrProductNotFound)
		}
		if err := requireOwner(product.UserId, user, ErrUnauthorized); err != nil {
			return err
		}

		attachments, err := schema.LoadAttachments(txn, schema.ProductItem, []uint{productId})
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		removed = attachments[productId]

		if err := schema.DeleteAttachments(txn, schema.ProductItem, productId); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if result := txn.Delete(&schema.Product{}, productId); result.Error != nil {
			return dbError("sql error deleting product", result.Error, "product_id", productId)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	for _, url := range append(removed.Images, removed.Videos...) {
		_ = s.ingestor.Remove(url)
	}

	utils.WriteSuccess(w, "Product deleted successfully")
}

type submitFeedbackResponse struct {
	utils.Status
	FeedbackId  uint    `json:"feedback_id"`
	AvgRating   float64 `json:"avg_rating"`
	ReviewCount int64   `json:"review_count"`
}

func (s *ProductService) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.OptionalUser(r)
	if !ok {
		if _, hasSession := auth.SessionUserId(r); hasSession {
			utils.WriteError(w, schema.ErrUserNotFound.Error(), http.StatusNotFound)
			return
		}
		utils.WriteError(w, ErrFeedbackLoginRequired.Error(), http.StatusUnauthorized)
		return
	}

	productId, err := utils.URLParamUint(r, "product_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !parseForm(w, r) {
		return
	}

	product, err := schema.GetProduct(productId, s.db, false)
	if err != nil {
		writeError(w, lookupError(err, schema.ErrProductNotFound))
		return
	}

	var existing int64
	result := s.db.Model(&schema.UserFeedback{}).Where("product_id = ? AND user_id = ?", productId, user.Id).Count(&existing)
	if result.Error != nil {
		writeError(w, dbError("sql error checking for existing feedback", result.Error, "product_id", productId))
		return
	}
	if existing > 0 {
		utils.WriteError(w, ErrDuplicateFeedback.Error(), http.StatusBadRequest)
		return
	}

	rating, err := parseRating(r.FormValue("rating"))
	if err != nil {
		writeError(w, err)
		return
	}

	prefix := fmt.Sprintf("feedback_product_%d_%d", productId, user.Id)
	savedImages, _ := s.ingestor.SaveAll(formFiles(r, "images"), storage.FeedbackDir, prefix, media.Images)
	savedVideos, _ := s.ingestor.SaveAll(formFiles(r, "videos"), storage.FeedbackDir, prefix, media.Videos)
	images, _ := media.Urls(savedImages)
	_, videos := media.Urls(savedVideos)

	feedback := schema.UserFeedback{
		UserId:       &user.Id,
		FarmerId:     product.UserId,
		ProductId:    &product.Id,
		ReviewerName: user.Name,
		Rating:       rating,
		Comment:      formValue(r, "comment"),
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if result := txn.Create(&feedback); result.Error != nil {
			if schema.IsDuplicateKey(result.Error) {
				return CodedError(ErrDuplicateFeedback, http.StatusBadRequest)
			}
			return dbError("sql error creating product feedback", result.Error, "product_id", productId)
		}
		if attachments := schema.NewAttachments(schema.UserFeedbackItem, feedback.Id, images, videos); len(attachments) > 0 {
			if result := txn.Create(&attachments); result.Error != nil {
				return dbError("sql error saving feedback attachments", result.Error, "feedback_id", feedback.Id)
			}
		}
		return nil
	})
	if err != nil {
		for _, url := range append(images, videos...) {
			_ = s.ingestor.Remove(url)
		}
		writeError(w, err)
		return
	}

	summary, err := schema.GetRatingSummary(s.db, "user_feedback", "product_id = ?", productId)
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

type productFeedback struct {
	Id        uint      `json:"id"`
	UserName  string    `json:"user_name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Images    []string  `json:"images"`
	Videos    []string  `json:"videos"`
	CreatedAt time.Time `json:"created_at"`
}

type productFeedbackResponse struct {
	utils.Status
	ProductName string            `json:"product_name"`
	AvgRating   float64           `json:"avg_rating"`
	ReviewCount int64             `json:"review_count"`
	Feedbacks   []productFeedback `json:"feedbacks"`
}

func (s *ProductService) ListFeedback(w http.ResponseWriter, r *http.Request) {
	productId, err := utils.URLParamUint(r, "product_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	product, err := schema.GetProduct(productId, s.db, false)
	if err != nil {
		writeError(w, lookupError(err, schema.ErrProductNotFound))
		return
	}

	var feedbacks []schema.UserFeedback
	result := s.db.Preload("User").Where("product_id = ?", productId).Order("created_at DESC, id DESC").Find(&feedbacks)
	if result.Error != nil {
		writeError(w, dbError("sql error listing product feedback", result.Error, "product_id", productId))
		return
	}

	summary, err := schema.GetRatingSummary(s.db, "user_feedback", "product_id = ?", productId)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	attachments, err := schema.LoadAttachments(s.db, schema.UserFeedbackItem, listIds(feedbacks, func(f schema.UserFeedback) uint { return f.Id }))
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	res := make([]productFeedback, 0, len(feedbacks))
	for _, fb := range feedbacks {
		name := fb.ReviewerName
		if name == "" && fb.User != nil {
			name = fb.User.Name
		}
		res = append(res, productFeedback{
			Id:        fb.Id,
			UserName:  defaultString(name, "Anonymous"),
			Rating:    fb.Rating,
			Comment:   fb.Comment,
			Images:    schema.OrEmpty(attachments[fb.Id].Images),
			Videos:    schema.OrEmpty(attachments[fb.Id].Videos),
			CreatedAt: fb.CreatedAt,
		})
	}

	utils.WriteJsonResponse(w, http.StatusOK, productFeedbackResponse{
		Status:      utils.Success(""),
		ProductName: product.Name,
		AvgRating:   summary.AvgRating,
		ReviewCount: summary.ReviewCount,
		Feedbacks:   res,
	})
}
