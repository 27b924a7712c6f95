package tests

import (
	"bytes"
	"context"
	"localfarmer/llm_gateway"
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/extraction"
	"localfarmer/marketplace/migrations"
	"localfarmer/marketplace/notify"
	"localfarmer/marketplace/services"
	"localfarmer/marketplace/storage"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeLLM answers every completion with reply, or fails with err when set.
type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []llm_gateway.CompletionRequest
}

func (f *fakeLLM) Complete(ctx context.Context, req llm_gateway.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) respond(reply string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = reply
	f.err = err
}

func (f *fakeLLM) lastPrompt() llm_gateway.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return llm_gateway.Prompt{}
	}
	return f.calls[len(f.calls)-1].Prompt
}

type testEnv struct {
	marketplace services.Marketplace
	api         chi.Router
	db          *gorm.DB
	storage     storage.Storage
	dispatcher  *notify.Dispatcher
	llm         *fakeLLM
	now         time.Time
}

func openTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatal(err)
	}
	sqlDb, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDb.Close() })

	if err := migrations.Migrate(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWithLimits(t, 10000, 10000)
}

// setupTestEnvWithLimits builds the api with the given per minute request
// limits for the credential and ai endpoints.
func setupTestEnvWithLimits(t *testing.T, authLimit, aiLimit int) *testEnv {
	db := openTestDB(t)

	store := storage.NewSharedDisk(t.TempDir())

	userAuth := auth.NewSessionIdentityProvider(db, auth.NewAuditLogger(new(bytes.Buffer)), auth.SessionProviderArgs{
		Secret:     []byte("marketplace-test-secret"),
		SessionTTL: time.Hour,
	})

	dispatcher := notify.NewDispatcher(db, notify.Options{Workers: 2, QueueSize: 16})
	t.Cleanup(dispatcher.Close)

	llm := &fakeLLM{reply: "ok"}
	prevProvider := llm_gateway.NewProvider
	t.Cleanup(func() { llm_gateway.NewProvider = prevProvider })
	llm_gateway.NewProvider = func(provider string, config llm_gateway.ProviderConfig) (llm_gateway.Provider, error) {
		return llm, nil
	}

	gateway := llm_gateway.NewGateway(map[string]llm_gateway.ProviderConfig{
		llm_gateway.Perplexity: {APIKey: "test-key"},
		llm_gateway.OpenAI:     {APIKey: "test-key"},
	}, llm_gateway.DefaultChains())
	extractor := extraction.NewExtractor(gateway, nil)

	env := &testEnv{db: db, storage: store, dispatcher: dispatcher, llm: llm, now: time.Now().UTC()}

	env.marketplace = services.NewMarketplace(db, store, userAuth, dispatcher, gateway, extractor, services.Options{
		AuthRequestsPerMinute: authLimit,
		AiRequestsPerMinute:   aiLimit,
		Now:                   func() time.Time { return env.now },
	})
	env.api = env.marketplace.Routes()

	return env
}

func (env *testEnv) newClient() *client {
	return &client{api: env.api}
}

// newUser registers a farmer with the given phone and returns a client
// carrying its session.
func (env *testEnv) newUser(t *testing.T, name, phone string) *client {
	c := env.newClient()
	if _, err := c.register(registerInfo{
		Name:     name,
		Phone:    phone,
		Village:  "Kondapur",
		Mandal:   "Serilingampally",
		District: "Rangareddy",
		UserType: "farmer",
		Language: "te",
		Password: "ab1",
	}); err != nil {
		t.Fatal(err)
	}
	return c
}

// notificationsFor waits for queued fan-out before counting.
func (env *testEnv) notificationsFor(t *testing.T, c *client) []notificationInfo {
	env.dispatcher.Wait()
	res, err := c.notifications("")
	if err != nil {
		t.Fatal(err)
	}
	return res
}
