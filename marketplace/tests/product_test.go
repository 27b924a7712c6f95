package tests

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"localfarmer/marketplace/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type productInfo struct {
	Id             uint     `json:"id"`
	UserId         uint     `json:"user_id"`
	Name           string   `json:"name"`
	Unit           string   `json:"unit"`
	Price          float64  `json:"price"`
	Quantity       float64  `json:"quantity"`
	Images         []string `json:"images"`
	FarmerName     string   `json:"farmer_name"`
	FarmerLocation string   `json:"farmer_location"`
}

func (c *client) products() ([]productInfo, error) {
	var res struct {
		status
		Products []productInfo `json:"products"`
	}
	code, err := c.Get("/products").Do(&res)
	return res.Products, expect(code, http.StatusOK, err, res.status)
}

type productFeedbackList struct {
	status
	ProductName string  `json:"product_name"`
	AvgRating   float64 `json:"avg_rating"`
	ReviewCount int64   `json:"review_count"`
	Feedbacks   []struct {
		UserName string   `json:"user_name"`
		Rating   int      `json:"rating"`
		Comment  string   `json:"comment"`
		Images   []string `json:"images"`
	} `json:"feedbacks"`
}

func TestCreateAndListProducts(t *testing.T) {
	env := setupTestEnv(t)

	ravi := env.newUser(t, "Ravi Kumar", "9876543210")

	for i := 0; i < 3; i++ {
		if _, err := ravi.createProduct(fmt.Sprintf("tomato%d", i), 100, 25.5); err != nil {
			t.Fatal(err)
		}
	}

	products, err := env.newClient().products()
	require.NoError(t, err)
	require.Len(t, products, 3)

	// Newest first.
	assert.Equal(t, "tomato2", products[0].Name)
	assert.Equal(t, "kg", products[0].Unit)
	assert.Equal(t, 25.5, products[0].Price)
	assert.Equal(t, "Ravi Kumar", products[0].FarmerName)
	assert.Equal(t, "Kondapur, Serilingampally, Rangareddy", products[0].FarmerLocation)
	require.Len(t, products[0].Images, 1)
	assert.Contains(t, products[0].Images[0], "/static/uploads/products/product_")
	assert.True(t, strings.HasSuffix(products[0].Images[0], "_tomato2.jpg"))

	var transactions struct {
		status
		Transactions []struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"transactions"`
	}
	code, err := ravi.Get("/transactions").Do(&transactions)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, transactions.Transactions, 3)
	assert.Equal(t, "product_created", transactions.Transactions[0].Type)
	assert.Equal(t, "Created product: tomato2", transactions.Transactions[0].Description)
}

func TestCreateProductValidation(t *testing.T) {
	env := setupTestEnv(t)

	var res status
	code, err := env.newClient().Post("/products").Json(map[string]interface{}{
		"category": "vegetables", "name": "okra", "description": "fresh", "quantity": 1, "price": 1,
	}).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, code)

	ravi := env.newUser(t, "Ravi Kumar", "9876543210")

	code, err = ravi.Post("/products").Json(map[string]interface{}{
		"category": "vegetables", "name": "okra", "quantity": 1, "price": 1,
	}).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Category, name, and description are required", res.Message)

	code, err = ravi.Post("/products").Json(map[string]interface{}{
		"category": "vegetables", "name": "okra", "description": "fresh", "quantity": "0", "price": "12",
	}).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Quantity and price must be greater than 0", res.Message)

	// Numeric strings are accepted.
	code, err = ravi.Post("/products").Json(map[string]interface{}{
		"category": "vegetables", "name": "okra", "description": "fresh", "quantity": "10", "price": "12.5", "unit": "bunch",
	}).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, code)

	products, err := ravi.products()
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 12.5, products[0].Price)
	assert.Equal(t, "bunch", products[0].Unit)
	assert.Empty(t, products[0].Images)
}

func TestProductNotifiesOtherUsers(t *testing.T) {
	env := setupTestEnv(t)

	ravi := env.newUser(t, "Ravi Kumar", "9876543210")
	others := []*client{
		env.newUser(t, "Lakshmi Devi", "9876543211"),
		env.newUser(t, "Suresh Reddy", "9876543212"),
		env.newUser(t, "Anil Rao", "9876543213"),
	}

	productId, err := ravi.createProduct("mango", 50, 80)
	require.NoError(t, err)

	for _, other := range others {
		notifications := env.notificationsFor(t, other)
		require.Len(t, notifications, 1)
		assert.Equal(t, "product_posted", notifications[0].Category)
		assert.Equal(t, "New Product Available", notifications[0].Title)
		assert.Equal(t, "product", notifications[0].RelatedItemType)
		require.NotNil(t, notifications[0].RelatedItemId)
		assert.Equal(t, productId, *notifications[0].RelatedItemId)
		assert.False(t, notifications[0].IsRead)
	}

	assert.Empty(t, env.notificationsFor(t, ravi), "creator should not be notified")
}

func TestDeleteProduct(t *testing.T) {
	env := setupTestEnv(t)

	ravi := env.newUser(t, "Ravi Kumar", "9876543210")
	lakshmi := env.newUser(t, "Lakshmi Devi", "9876543211")

	productId, err := ravi.createProduct("brinjal", 20, 30)
	require.NoError(t, err)

	var res status
	code, err := lakshmi.Delete(fmt.Sprintf("/products/%d", productId)).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, code)

	code, err = ravi.Delete(fmt.Sprintf("/products/%d", productId)).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	code, err = ravi.Delete(fmt.Sprintf("/products/%d", productId)).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Product not found", res.Message)

	products, err := ravi.products()
	require.NoError(t, err)
	assert.Empty(t, products)
}

func writeKeepsakes(t *testing.T, env *testEnv) []string {
	files := []string{"uploads/profiles/victim.jpg", "other/keep.txt"}
	for _, file := range files {
		require.NoError(t, env.storage.Write(file, bytes.NewReader([]byte("keep"))))
	}
	return files
}

func assertKeepsakes(t *testing.T, env *testEnv, files []string) {
	for _, file := range files {
		exists, err := env.storage.Exists(file)
		require.NoError(t, err)
		assert.True(t, exists, file)
	}
}

func hostileImages(t *testing.T, other *client) []string {
	foreign, err := other.upload("foreign.jpg", []byte("jpeg"))
	require.NoError(t, err)
	return []string{
		"/static/uploads/..",
		"/static/uploads/products/..",
		"/static/uploads/profiles/victim.jpg",
		"/static/uploads/products/../profiles/victim.jpg",
		"/static/uploads/products/product_1_missing.jpg",
		"/etc/passwd",
		foreign,
	}
}

func TestProductImagesMustBeOwnUploads(t *testing.T) {
	env := setupTestEnv(t)

	ravi := env.newUser(t, "Ravi Kumar", "9876543210")
	lakshmi := env.newUser(t, "Lakshmi Devi", "9876543211")
	keepsakes := writeKeepsakes(t, env)

	for _, image := range hostileImages(t, lakshmi) {
		var res status
		code, err := ravi.Post("/products").Json(map[string]interface{}{
			"category": "vegetables", "name": "okra", "description": "fresh", "quantity": 1, "price": 1,
			"images": []string{image},
		}).Do(&res)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, code, image)
	}

	products, err := ravi.products()
	require.NoError(t, err)
	assert.Empty(t, products)

	// Stored attachments pointing outside an upload dir are skipped on delete.
	productId, err := ravi.createProduct("okra", 1, 1)
	require.NoError(t, err)
	hostile := schema.NewAttachments(schema.ProductItem, productId, []string{"/static/uploads/..", "/static/uploads/products/.."}, nil)
	require.NoError(t, env.db.Create(&hostile).Error)

	var res status
	code, err := ravi.Delete(fmt.Sprintf("/products/%d", productId)).Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	assertKeepsakes(t, env, keepsakes)
	exists, err := env.storage.Exists("uploads/products")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestProductFeedback(t *testing.T) {
	env := setupTestEnv(t)

	ravi := env.newUser(t, "Ravi Kumar", "9876543210")
	lakshmi := env.newUser(t, "Lakshmi Devi", "9876543211")
	suresh := env.newUser(t, "Suresh Reddy", "9876543212")

	productId, err := ravi.createProduct("chilli", 10, 120)
	require.NoError(t, err)
	endpoint := fmt.Sprintf("/products/%d/feedback", productId)

	var res status
	code, err := env.newClient().Post(endpoint).Field("rating", "4").Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Please login to submit feedback", res.Message)

	code, err = lakshmi.Post(endpoint).Field("rating", "7").Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Rating must be between 1 and 5", res.Message)

	code, err = lakshmi.Post("/products/9999/feedback").Field("rating", "4").Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)

	var submitted struct {
		status
		FeedbackId  uint    `json:"feedback_id"`
		AvgRating   float64 `json:"avg_rating"`
		ReviewCount int64   `json:"review_count"`
	}
	code, err = lakshmi.Post(endpoint).
		Field("rating", "4").
		Field("comment", "very spicy").
		File("images", "chilli.jpg", []byte("jpeg bytes")).
		File("images", "notes.txt", []byte("not an image")).
		Do(&submitted)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, code, submitted.Message)
	assert.Equal(t, 4.0, submitted.AvgRating)
	assert.EqualValues(t, 1, submitted.ReviewCount)

	code, err = lakshmi.Post(endpoint).Field("rating", "5").Do(&res)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "You have already submitted feedback for this product", res.Message)

	code, err = suresh.Post(endpoint).Field("rating", "5").Do(&submitted)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, 4.5, submitted.AvgRating)
	assert.EqualValues(t, 2, submitted.ReviewCount)

	var list productFeedbackList
	code, err = env.newClient().Get(endpoint).Do(&list)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "chilli", list.ProductName)
	assert.Equal(t, 4.5, list.AvgRating)
	require.Len(t, list.Feedbacks, 2)

	byUser := map[string]int{}
	for i, feedback := range list.Feedbacks {
		byUser[feedback.UserName] = i
	}
	first := list.Feedbacks[byUser["Lakshmi Devi"]]
	assert.Equal(t, 4, first.Rating)
	assert.Equal(t, "very spicy", first.Comment)
	require.Len(t, first.Images, 1, "only the image file is kept")
	assert.Contains(t, first.Images[0], "/static/uploads/feedback/feedback_product_")
}
