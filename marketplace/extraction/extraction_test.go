package extraction

import (
	"context"
	"errors"
	"localfarmer/llm_gateway"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetectPortal(t *testing.T) {
	assert.Equal(t, "Unknown", DetectPortal(""))
	assert.Equal(t, "PM Kisan Samman Nidhi Portal", DetectPortal("https://PMKISAN.gov.in/about"))
	assert.Equal(t, "Tamil Nadu Government", DetectPortal("https://tnesevai.tn.gov.in/"))
	assert.Equal(t, "Government Portal", DetectPortal("https://example.org/schemes"))
}

func TestVisibleTextStripsChrome(t *testing.T) {
	page := `<html><head><style>body{}</style><script>var x = 1;</script></head>
<body>
<header>Site header</header>
<nav>Home | About</nav>
<main><h1>PM Kisan</h1><p>Income support of Rs 6000   per year.</p></main>
<aside>Related</aside>
<iframe src="ad"></iframe>
<footer>Copyright</footer>
</body></html>`

	text, err := VisibleText(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "PM Kisan Income support of Rs 6000   per year.", text)
	assert.Equal(t, "PM Kisan Income support of Rs 6000 per year.", CleanContent(text))
}

func TestCleanContentRemovesNoise(t *testing.T) {
	assert.Equal(t, "Accept all s.  Scheme details", CleanContent("Accept all Cookies.\n\n Privacy Scheme   details"))
}

func TestTruncate(t *testing.T) {
	short := "abc"
	assert.Equal(t, short, Truncate(short))

	long := strings.Repeat("₹", MaxContentLength+10)
	assert.Equal(t, MaxContentLength, len([]rune(Truncate(long))))
}

func TestParseResponseStrategies(t *testing.T) {
	value, ok := ParseResponse(`Here you go: [{"scheme_name": "PM Kisan"}] hope this helps`)
	assert.True(t, ok)
	assert.Len(t, value, 1)

	value, ok = ParseResponse(`"just text"`)
	assert.True(t, ok)
	assert.Equal(t, "just text", value)

	value, ok = ParseResponse("```json\n{\"scheme_name\": \"Rythu Bandhu\"}\n```\nNote: see {draft}")
	assert.True(t, ok)
	assert.Equal(t, "Rythu Bandhu", value.(map[string]interface{})["scheme_name"])

	_, ok = ParseResponse("no json here")
	assert.False(t, ok)

	_, ok = ParseResponse("   ")
	assert.False(t, ok)
}

func TestCleanSchemes(t *testing.T) {
	parsed, ok := ParseResponse(`[
		{"scheme_name": "  PM Kisan ", "benefits": "Rs 6000", "state": ""},
		{"scheme_name": ""},
		{"description": "no name"},
		"not an object",
		{"scheme_name": "Rythu Bandhu", "state": "Telangana", "official_website": "https://rythubandhu.telangana.gov.in"}
	]`)
	if !ok {
		t.Fatal("expected parse to succeed")
	}

	schemes := CleanSchemes(parsed, "https://pmkisan.gov.in")
	assert.Len(t, schemes, 2)

	assert.Equal(t, "PM Kisan", schemes[0].SchemeName)
	assert.Equal(t, "Rs 6000", schemes[0].Benefits)
	assert.Equal(t, "All India", schemes[0].State)
	assert.Equal(t, "https://pmkisan.gov.in", schemes[0].OfficialWebsite)
	assert.Equal(t, "", schemes[0].EndDate)

	assert.Equal(t, "Telangana", schemes[1].State)
	assert.Equal(t, "https://rythubandhu.telangana.gov.in", schemes[1].OfficialWebsite)

	single := CleanSchemes(map[string]interface{}{"scheme_name": "PMFBY"}, "")
	assert.Len(t, single, 1)
	assert.Equal(t, "", single[0].OfficialWebsite)
}

type scriptedProvider struct {
	replies map[string]string
	errs    map[string]error
	calls   []string
}

func (p *scriptedProvider) Complete(ctx context.Context, req llm_gateway.CompletionRequest) (string, error) {
	p.calls = append(p.calls, req.Model)
	if err, ok := p.errs[req.Model]; ok {
		return "", err
	}
	return p.replies[req.Model], nil
}

func newTestExtractor(t *testing.T, provider *scriptedProvider, configs map[string]llm_gateway.ProviderConfig) *Extractor {
	prevProvider := llm_gateway.NewProvider
	t.Cleanup(func() { llm_gateway.NewProvider = prevProvider })
	llm_gateway.NewProvider = func(name string, config llm_gateway.ProviderConfig) (llm_gateway.Provider, error) {
		return provider, nil
	}

	gateway := llm_gateway.NewGateway(configs, map[string]llm_gateway.Chain{
		llm_gateway.SchemeExtractChain:         {{Provider: llm_gateway.Perplexity, Model: "primary"}},
		llm_gateway.SchemeExtractFallbackChain: {{Provider: llm_gateway.OpenAI, Model: "fallback"}},
	})

	extractor := NewExtractor(gateway, nil)
	extractor.now = func() time.Time { return time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) }
	return extractor
}

func TestExtractRequiresInput(t *testing.T) {
	extractor := newTestExtractor(t, &scriptedProvider{}, nil)
	_, err := extractor.Extract(context.Background(), "", "")
	assert.True(t, errors.Is(err, ErrNoInput))
}

func TestExtractFallsBackOnUnparseableReply(t *testing.T) {
	provider := &scriptedProvider{replies: map[string]string{
		"primary":  "Sorry, I cannot help with that.",
		"fallback": "```json\n[{\"scheme_name\": \"PM Kisan\"}]\n```",
	}}
	extractor := newTestExtractor(t, provider, map[string]llm_gateway.ProviderConfig{
		llm_gateway.Perplexity: {}, llm_gateway.OpenAI: {},
	})

	result, err := extractor.Extract(context.Background(), "PM Kisan gives Rs 6000 to farmers", "https://pmkisan.gov.in")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, []string{"primary", "fallback"}, provider.calls)
	assert.Equal(t, "PM Kisan Samman Nidhi Portal", result.Source)
	assert.Len(t, result.Schemes, 1)
	assert.Equal(t, "https://pmkisan.gov.in", result.Schemes[0].OfficialWebsite)
	assert.Equal(t, "", result.Message)
}

func TestExtractTotalFailureIsAdvisory(t *testing.T) {
	provider := &scriptedProvider{errs: map[string]error{
		"primary": context.DeadlineExceeded,
	}}
	// Only perplexity is configured, so the fallback chain is skipped.
	extractor := newTestExtractor(t, provider, map[string]llm_gateway.ProviderConfig{llm_gateway.Perplexity: {}})

	result, err := extractor.Extract(context.Background(), "some page text", "")
	if err != nil {
		t.Fatal(err)
	}
	assert.Empty(t, result.Schemes)
	assert.NotNil(t, result.Schemes)
	assert.Equal(t, "Unknown", result.Source)
	assert.Equal(t, "Request timed out. The website may be slow. Please try again.", result.Message)
}

func TestExtractNoValidSchemesMessage(t *testing.T) {
	provider := &scriptedProvider{replies: map[string]string{
		"primary":  "[]",
		"fallback": `[{"description": "missing name"}]`,
	}}
	extractor := newTestExtractor(t, provider, map[string]llm_gateway.ProviderConfig{
		llm_gateway.Perplexity: {}, llm_gateway.OpenAI: {},
	})

	result, err := extractor.Extract(context.Background(), "text", "")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "No government schemes found in the provided content. Please try a different URL or page.", result.Message)
}

func TestExtractFetchesUrl(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/empty":
			w.Write([]byte("<html><body><script>x()</script></body></html>"))
		default:
			w.Write([]byte("<html><body><nav>menu</nav><p>PM Kisan scheme</p></body></html>"))
		}
	}))
	defer server.Close()

	provider := &scriptedProvider{replies: map[string]string{
		"primary": `{"scheme_name": "PM Kisan"}`,
	}}
	extractor := newTestExtractor(t, provider, map[string]llm_gateway.ProviderConfig{llm_gateway.Perplexity: {}})

	result, err := extractor.Extract(context.Background(), "", server.URL+"/page")
	if err != nil {
		t.Fatal(err)
	}
	assert.Contains(t, userAgent, "Mozilla/5.0")
	assert.Equal(t, "Government Portal", result.Source)
	assert.Len(t, result.Schemes, 1)

	_, err = extractor.Extract(context.Background(), "", server.URL+"/empty")
	assert.True(t, errors.Is(err, ErrNoContent))

	_, err = extractor.Extract(context.Background(), "", "http://127.0.0.1:1/unreachable")
	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
	assert.True(t, strings.HasPrefix(err.Error(), "Failed to fetch URL: "))
}
