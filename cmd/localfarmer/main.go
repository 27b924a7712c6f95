package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"localfarmer/llm_gateway"
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/database"
	"localfarmer/marketplace/extraction"
	"localfarmer/marketplace/migrations"
	"localfarmer/marketplace/notify"
	"localfarmer/marketplace/services"
	"localfarmer/marketplace/storage"
	"localfarmer/utils/logging"

	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type localFarmerEnv struct {
	Database database.Config `env:""`

	ShareDir  string `env:"SHARE_DIR,required"`
	WebDir    string `env:"WEB_DIR"`
	JwtSecret string `env:"JWT_SECRET,required"`

	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	CookieSecure   bool          `env:"COOKIE_SECURE"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	PerplexityApiKey  string `env:"PERPLEXITY_API_KEY"`
	PerplexityBaseUrl string `env:"PERPLEXITY_BASE_URL"`
	OpenaiApiKey      string `env:"OPENAI_API_KEY"`
	OpenaiBaseUrl     string `env:"OPENAI_BASE_URL"`
	AiProvidersFile   string `env:"AI_PROVIDERS_FILE"`

	NotifyWorkers   int `env:"NOTIFY_WORKERS" envDefault:"4"`
	NotifyQueueSize int `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`

	AuthRequestsPerMinute int `env:"AUTH_REQUESTS_PER_MINUTE"`
	AiRequestsPerMinute   int `env:"AI_REQUESTS_PER_MINUTE"`
}

func loadEnvFile(envFile string) error {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("error loading .env file '%v': %w", envFile, err)
	}
	return nil
}

/**
 * ==========================================================================
 * ==== All variables that are used by the server must be loaded here.   ====
 * ==== This keeps the data flow clear: a reader can see which variables ====
 * ==== are exposed and how the values are propagated through the system.====
 * ==========================================================================
 */
func loadEnv() (*localFarmerEnv, error) {
	cfg := &localFarmerEnv{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.Database.DatabaseUri == "" && cfg.Database.SqlitePath == "" {
		return nil, database.ErrNoDatabase
	}
	return cfg, nil
}

func (env *localFarmerEnv) llmProviders() map[string]llm_gateway.ProviderConfig {
	providers := map[string]llm_gateway.ProviderConfig{}
	if env.PerplexityApiKey != "" {
		providers[llm_gateway.Perplexity] = llm_gateway.ProviderConfig{
			APIKey: env.PerplexityApiKey, BaseURL: env.PerplexityBaseUrl, HTTPClient: llm_gateway.DefaultHTTPClient(),
		}
	}
	if env.OpenaiApiKey != "" {
		providers[llm_gateway.OpenAI] = llm_gateway.ProviderConfig{
			APIKey: env.OpenaiApiKey, BaseURL: env.OpenaiBaseUrl, HTTPClient: llm_gateway.DefaultHTTPClient(),
		}
	}
	if len(providers) == 0 {
		slog.Warn("no llm provider keys configured, ai features will report configuration errors", "code", logging.SYSTEM)
	}
	return providers
}

func openLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
}

// servePage serves a single html file from the web dir.
func servePage(webDir, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(webDir, name))
	}
}

// uploadFiles serves stored uploads but never lists a directory.
type uploadFiles struct {
	http.FileSystem
}

func (fs uploadFiles) Open(name string) (http.File, error) {
	file, err := fs.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

func uploadsHandler(shareDir string) http.Handler {
	uploads := uploadFiles{http.Dir(filepath.Join(shareDir, storage.UploadsDir))}
	return http.StripPrefix(storage.PublicUrlRoot+"/", http.FileServer(uploads))
}

func addPageRoutes(r chi.Router, webDir string, userAuth auth.IdentityProvider) {
	pages := r.With(userAuth.LoadPrincipal()...)

	pages.Get("/", servePage(webDir, "index.html"))
	pages.With(userAuth.PageGate()).Get("/dashboard", servePage(webDir, "dashboard.html"))
}

// The reason we have a separate runApp function is because the defer calls don't
// run if we exit with log.Fatalf, so instead we return an err here and fail outside
func runApp() error {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 5000, "Port to run server on")

	flag.Parse()

	if *envFile != "" {
		if err := loadEnvFile(*envFile); err != nil {
			return err
		}
	}

	env, err := loadEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(env.ShareDir, "logs"), 0777); err != nil {
		return fmt.Errorf("error creating log dir: %w", err)
	}

	logFile, err := openLogFile(filepath.Join(env.ShareDir, "logs/localfarmer.log"))
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer logFile.Close()

	auditLog, err := openLogFile(filepath.Join(env.ShareDir, "logs/audit.log"))
	if err != nil {
		return fmt.Errorf("error opening audit log file: %w", err)
	}
	defer auditLog.Close()

	logging.InitLogging(logFile, "localfarmer")
	slog.Info("logging initialized", "log_file", logFile.Name(), "code", logging.SYSTEM)

	db, err := database.Open(env.Database)
	if err != nil {
		return err
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("error migrating db schema: %w", err)
	}

	sharedStorage := storage.NewSharedDisk(env.ShareDir)
	if usage, err := sharedStorage.Usage(); err == nil {
		slog.Info("shared storage usage", "total_bytes", usage.TotalBytes, "free_bytes", usage.FreeBytes, "code", logging.SYSTEM)
	}

	chains, err := llm_gateway.LoadChains(env.AiProvidersFile)
	if err != nil {
		return fmt.Errorf("error loading llm chains: %w", err)
	}
	gateway := llm_gateway.NewGateway(env.llmProviders(), chains)
	extractor := extraction.NewExtractor(gateway, nil)

	dispatcher := notify.NewDispatcher(db, notify.Options{Workers: env.NotifyWorkers, QueueSize: env.NotifyQueueSize})
	defer dispatcher.Close()

	userAuth := auth.NewSessionIdentityProvider(
		db,
		auth.NewAuditLogger(auditLog),
		auth.SessionProviderArgs{
			Secret:       []byte(env.JwtSecret),
			SessionTTL:   env.SessionTTL,
			SecureCookie: env.CookieSecure,
		},
	)

	marketplace := services.NewMarketplace(
		db,
		sharedStorage,
		userAuth,
		dispatcher,
		gateway,
		extractor,
		services.Options{
			AuthRequestsPerMinute: env.AuthRequestsPerMinute,
			AiRequestsPerMinute:   env.AiRequestsPerMinute,
		},
	)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   env.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api", marketplace.Routes())
	r.Handle("/metrics", promhttp.Handler())

	r.Handle(storage.PublicUrlRoot+"/*", uploadsHandler(env.ShareDir))

	if env.WebDir != "" {
		addPageRoutes(r, env.WebDir, userAuth)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	/* srv.Shutdown lets in flight requests finish before returning, so the
	deferred dispatcher.Close runs after the last publish.
	https://pkg.go.dev/net/http#Server.Shutdown */
	idleConnsClosed := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutdown signal received", "code", logging.SYSTEM)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("HTTP server Shutdown", "err", err, "code", logging.SYSTEM)
		}
		close(idleConnsClosed)
	}()

	slog.Info("starting server", "port", *port, "code", logging.SYSTEM)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve returned error: %w", err)
	}

	<-idleConnsClosed
	slog.Info("server stopped, draining notifications", "code", logging.SYSTEM)
	return nil
}

func main() {
	if err := runApp(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}
