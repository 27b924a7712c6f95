package tests

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"localfarmer/marketplace/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type livePrice struct {
	Id            uint     `json:"id"`
	ProductName   string   `json:"product_name"`
	MinPrice      float64  `json:"min_price"`
	MaxPrice      float64  `json:"max_price"`
	PriceUnit     string   `json:"price_unit"`
	PriceTrend    string   `json:"price_trend"`
	PosterName    string   `json:"poster_name"`
	Latitude      *float64 `json:"latitude"`
	Images        []string `json:"images"`
	FeedbackCount int64    `json:"feedback_count"`
	AvgRating     float64  `json:"avg_rating"`
}

func (c *client) postLivePrice(product string, min, max string) *httpTestRequest {
	return c.Post("/live-prices").
		Field("product_name", product).
		Field("category", "vegetables").
		Field("min_price", min).
		Field("max_price", max).
		Field("phone", "9876543210")
}

func (c *client) livePrices() ([]livePrice, error) {
	var res struct {
		status
		Prices []livePrice `json:"prices"`
	}
	code, err := c.Get("/live-prices").Do(&res)
	return res.Prices, expect(code, http.StatusOK, err, res.status)
}

func TestCreateLivePrice(t *testing.T) {
	env := setupTestEnv(t)

	var res status
	code, err := env.newClient().postLivePrice("tomato", "20", "30").Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, code)

	ravi := env.newUser(t, "Ravi Kumar", "9876543210")

	code, err = ravi.Post("/live-prices").Field("product_name", "tomato").Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Product name, category, price range, and phone are required", res.Message)

	code, err = ravi.postLivePrice("tomato", "20", "abc").Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid price values", res.Message)

	code, err = ravi.postLivePrice("tomato", "40", "30").Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid price range", res.Message)

	code, err = ravi.postLivePrice("tomato", "20", "30").Field("price_trend", "sideways").Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)

	var created createdResponse
	code, err = ravi.postLivePrice("tomato", "20", "30").
		Field("price_trend", "Increased").
		Field("latitude", "17.46").
		Field("longitude", "not a number").
		File("images", "crate.jpg", []byte("jpeg")).
		Do(&created)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, code, created.Message)
	assert.Equal(t, "Live price posted successfully", created.Message)

	var details struct {
		status
		Price struct {
			livePrice
			Longitude *float64 `json:"longitude"`
		} `json:"price"`
	}
	code, err = env.newClient().Get(fmt.Sprintf("/live-prices/%d", created.Id)).Do(&details)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "tomato", details.Price.ProductName)
	assert.Equal(t, "Kg", details.Price.PriceUnit)
	assert.Equal(t, "increased", details.Price.PriceTrend)
	assert.Equal(t, "Ravi Kumar", details.Price.PosterName)
	require.NotNil(t, details.Price.Latitude)
	assert.Equal(t, 17.46, *details.Price.Latitude)
	assert.Nil(t, details.Price.Longitude)
	require.Len(t, details.Price.Images, 1)
	assert.Contains(t, details.Price.Images[0], "/static/uploads/live_prices/live_price_")
	assert.True(t, strings.HasSuffix(details.Price.Images[0], "_crate.jpg"))

	// Live price posts do not notify anyone.
	assert.Empty(t, env.notificationsFor(t, env.newUser(t, "Lakshmi Devi", "9876543211")))
}

func TestLivePricesExpire(t *testing.T) {
	env := setupTestEnv(t)

	ravi := env.newUser(t, "Ravi Kumar", "9876543210")

	posted := env.now

	var old createdResponse
	code, err := ravi.postLivePrice("onion", "15", "18").Do(&old)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, code)

	env.now = posted.Add(20 * time.Hour)

	var fresh createdResponse
	code, err = ravi.postLivePrice("potato", "22", "25").Do(&fresh)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, code)

	prices, err := env.newClient().livePrices()
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, "potato", prices[0].ProductName)

	env.now = posted.Add(23*time.Hour + 59*time.Minute)

	prices, err = env.newClient().livePrices()
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, old.Id, prices[1].Id)

	env.now = posted.Add(24*time.Hour + time.Minute)

	prices, err = env.newClient().livePrices()
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, fresh.Id, prices[0].Id)

	var res status
	code, err = env.newClient().Get(fmt.Sprintf("/live-prices/%d", old.Id)).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Price post not found or expired", res.Message)

	code, err = env.newClient().Post(fmt.Sprintf("/live-prices/%d/feedback", old.Id)).Json(map[string]interface{}{"rating": 3}).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)

	// Expired posts are hidden, not deleted.
	var n int64
	require.NoError(t, env.db.Model(&schema.LivePrice{}).Where("id = ?", old.Id).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestLivePriceFeedback(t *testing.T) {
	env := setupTestEnv(t)

	ravi := env.newUser(t, "Ravi Kumar", "9876543210")
	lakshmi := env.newUser(t, "Lakshmi Devi", "9876543211")

	var created createdResponse
	code, err := ravi.postLivePrice("okra", "30", "35").Do(&created)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, code)
	endpoint := fmt.Sprintf("/live-prices/%d/feedback", created.Id)

	var res status
	for _, rating := range []interface{}{nil, 0, 9, "x"} {
		code, err = lakshmi.Post(endpoint).Json(map[string]interface{}{"rating": rating}).Do(&res)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Rating must be between 1 and 5", res.Message)
	}

	code, err = lakshmi.Post(endpoint).Json(map[string]interface{}{"rating": 4, "comment": "accurate"}).Do(&created)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, code)

	code, err = env.newClient().Post(endpoint).Json(map[string]interface{}{"rating": "1"}).Do(&created)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, code)

	var list struct {
		status
		Feedbacks []struct {
			FarmerName string `json:"farmer_name"`
			Rating     int    `json:"rating"`
		} `json:"feedbacks"`
		Stats struct {
			Count     int64   `json:"count"`
			AvgRating float64 `json:"avg_rating"`
		} `json:"stats"`
	}
	code, err = env.newClient().Get(endpoint).Do(&list)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, list.Stats.Count)
	assert.Equal(t, 2.5, list.Stats.AvgRating)
	require.Len(t, list.Feedbacks, 2)
	assert.Equal(t, "Anonymous", list.Feedbacks[0].FarmerName)
	assert.Equal(t, "Lakshmi Devi", list.Feedbacks[1].FarmerName)

	prices, err := env.newClient().livePrices()
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.EqualValues(t, 2, prices[0].FeedbackCount)
	assert.Equal(t, 2.5, prices[0].AvgRating)
}
