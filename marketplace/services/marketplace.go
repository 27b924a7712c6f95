package services

import (
	"localfarmer/llm_gateway"
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/extraction"
	"localfarmer/marketplace/media"
	"localfarmer/marketplace/notify"
	"localfarmer/marketplace/storage"
	"localfarmer/utils"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"gorm.io/gorm"
)

const (
	authRequestsPerMinute = 20
	aiRequestsPerMinute   = 10
)

type Options struct {
	// Per ip request limits for the credential and ai endpoints. Zero uses
	// the defaults.
	AuthRequestsPerMinute int
	AiRequestsPerMinute   int

	Now func() time.Time
}

type Marketplace struct {
	user              UserService
	profile           ProfileService
	upload            UploadService
	product           ProductService
	feedback          FeedbackService
	rental            RentalService
	requirement       RequirementService
	rentalRequirement RentalRequirementService
	scheme            SchemeService
	livePrice         LivePriceService
	notification      NotificationService
	history           HistoryService
	transaction       TransactionService
	contact           ContactService
	saved             SavedItemService
	assistant         AssistantService

	userAuth    auth.IdentityProvider
	authLimiter func(http.Handler) http.Handler
	aiLimiter   func(http.Handler) http.Handler
}

func limiter(perMinute, fallback int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		perMinute = fallback
	}
	return httprate.Limit(
		perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			utils.WriteError(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
		}),
	)
}

func NewMarketplace(
	db *gorm.DB, store storage.Storage, userAuth auth.IdentityProvider, publisher notify.Publisher, gateway *llm_gateway.Gateway, extractor *extraction.Extractor, opts Options,
) Marketplace {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	ingestor := media.NewIngestor(store)
	aiLimiter := limiter(opts.AiRequestsPerMinute, aiRequestsPerMinute)

	return Marketplace{
		user:    UserService{db: db, userAuth: userAuth},
		profile: ProfileService{db: db, storage: store, ingestor: ingestor, userAuth: userAuth},
		upload:  UploadService{storage: store, ingestor: ingestor, userAuth: userAuth},
		product: ProductService{
			db:        db,
			storage:   store,
			ingestor:  ingestor,
			userAuth:  userAuth,
			publisher: publisher,
		},
		feedback: FeedbackService{db: db},
		rental: RentalService{
			db:        db,
			storage:   store,
			ingestor:  ingestor,
			userAuth:  userAuth,
			publisher: publisher,
		},
		requirement:       RequirementService{db: db, publisher: publisher},
		rentalRequirement: RentalRequirementService{db: db, publisher: publisher},
		scheme:            SchemeService{db: db, extractor: extractor, limiter: aiLimiter},
		livePrice:         LivePriceService{db: db, storage: store, ingestor: ingestor, now: now},
		notification:      NotificationService{db: db, userAuth: userAuth},
		history:           HistoryService{db: db, userAuth: userAuth, now: now},
		transaction:       TransactionService{db: db, userAuth: userAuth},
		contact:           ContactService{db: db},
		saved:             SavedItemService{db: db, userAuth: userAuth},
		assistant:         AssistantService{gateway: gateway},

		userAuth:    userAuth,
		authLimiter: limiter(opts.AuthRequestsPerMinute, authRequestsPerMinute),
		aiLimiter:   aiLimiter,
	}
}

// Routes builds the json api. It is mounted under /api by the server.
func (m *Marketplace) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))
	r.Use(recordLatency)
	r.Use(m.userAuth.LoadPrincipal()...)

	r.Group(func(r chi.Router) {
		r.Use(m.authLimiter)

		r.Post("/register", m.user.Register)
		r.Post("/login", m.user.Login)
		r.Post("/logout", m.user.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(m.aiLimiter)

		r.Post("/ai/chat", m.assistant.Chat)
		r.Post("/crop/details", m.assistant.CropDetails)
	})

	r.Mount("/user", m.user.Routes())
	r.Mount("/profile", m.profile.Routes())
	r.Mount("/upload", m.upload.Routes())
	r.Mount("/products", m.product.Routes())
	r.Mount("/feedback", m.feedback.Routes())
	r.Mount("/rentals", m.rental.Routes())
	r.Mount("/requirements", m.requirement.Routes())
	r.Mount("/rental-requirements", m.rentalRequirement.Routes())
	r.Mount("/schemes", m.scheme.Routes())
	r.Mount("/live-prices", m.livePrice.Routes())
	r.Mount("/notifications", m.notification.Routes())
	r.Mount("/history", m.history.Routes())
	r.Mount("/transactions", m.transaction.Routes())
	r.Mount("/contact", m.contact.Routes())
	r.Mount("/saved", m.saved.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJsonResponse(w, http.StatusOK, utils.Success(""))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, "Not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	return r
}
