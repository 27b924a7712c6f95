package tests

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scheme struct {
	Id              uint   `json:"id"`
	SchemeName      string `json:"scheme_name"`
	State           string `json:"state"`
	OfficialWebsite string `json:"official_website"`
	Benefits        string `json:"benefits"`
}

type extractResult struct {
	status
	Schemes []scheme `json:"schemes"`
	Count   int      `json:"count"`
	Source  string   `json:"source"`
	Url     string   `json:"url"`
}

func TestSaveListDeleteSchemes(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	var res status
	code, err := c.Post("/schemes").Json(map[string]string{"benefits": "6000 per year"}).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Scheme name is required", res.Message)

	var created createdResponse
	code, err = c.Post("/schemes").Json(map[string]string{"scheme_name": "PM-KISAN", "benefits": "6000 per year"}).Do(&created)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, code)

	var list struct {
		status
		Schemes []scheme `json:"schemes"`
	}
	code, err = c.Get("/schemes").Do(&list)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list.Schemes, 1)
	assert.Equal(t, created.SchemeId, list.Schemes[0].Id)
	assert.Equal(t, "All India", list.Schemes[0].State)

	code, err = c.Delete(fmt.Sprintf("/schemes/%d", created.SchemeId)).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	code, err = c.Delete(fmt.Sprintf("/schemes/%d", created.SchemeId)).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestExtractSchemes(t *testing.T) {
	env := setupTestEnv(t)

	env.llm.respond("Here you go:\n```json\n"+`[
		{"scheme_name": "Rythu Bandhu", "benefits": "5000 per acre", "state": "Telangana"},
		{"scheme_name": "", "benefits": "dropped"},
		{"scheme_name": "PMFBY", "official_website": "https://pmfby.gov.in"}
	]`+"\n```", nil)

	var res extractResult
	code, err := env.newClient().Post("/schemes/extract").Json(map[string]string{
		"content": "Rythu Bandhu provides investment support to farmers. PMFBY insures crops.",
		"url":     "https://agriwelfare.gov.in/en/schemes",
	}).Do(&res)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Schemes, 2)
	assert.Equal(t, "Rythu Bandhu", res.Schemes[0].SchemeName)
	assert.Equal(t, "Telangana", res.Schemes[0].State)
	assert.Equal(t, "https://agriwelfare.gov.in/en/schemes", res.Schemes[0].OfficialWebsite)
	assert.Equal(t, "All India", res.Schemes[1].State)
	assert.Equal(t, "https://pmfby.gov.in", res.Schemes[1].OfficialWebsite)

	assert.Contains(t, env.llm.lastPrompt().User, "Rythu Bandhu provides investment support")
}

func TestExtractSchemesDegradesGracefully(t *testing.T) {
	env := setupTestEnv(t)

	request := map[string]string{"content": "Scheme details are listed below."}

	env.llm.respond("I could not find anything useful.", nil)
	var res extractResult
	code, err := env.newClient().Post("/schemes/extract").Json(request).Do(&res)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
	assert.Empty(t, res.Schemes)
	assert.Zero(t, res.Count)
	assert.True(t, strings.HasPrefix(res.Message, "Could not parse scheme data"), res.Message)

	env.llm.respond(`[{"benefits": "no name"}]`, nil)
	code, err = env.newClient().Post("/schemes/extract").Json(request).Do(&res)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, res.Schemes)
	assert.True(t, strings.HasPrefix(res.Message, "No government schemes found"), res.Message)

	env.llm.respond("", context.DeadlineExceeded)
	code, err = env.newClient().Post("/schemes/extract").Json(request).Do(&res)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, res.Schemes)
	assert.Equal(t, "Request timed out. The website may be slow. Please try again.", res.Message)
}

func TestExtractSchemesInputErrors(t *testing.T) {
	env := setupTestEnv(t)

	var res status
	code, err := env.newClient().Post("/schemes/extract").Json(map[string]string{}).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Content or URL is required", res.Message)

	code, err = env.newClient().Post("/schemes/extract").Json(map[string]string{"url": "http://127.0.0.1:1/schemes"}).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.True(t, strings.HasPrefix(res.Message, "Failed to fetch URL"), res.Message)
}
