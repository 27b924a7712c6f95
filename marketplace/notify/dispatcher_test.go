package notify

import (
	"fmt"
	"localfarmer/marketplace/migrations"
	"localfarmer/marketplace/schema"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
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

func addUsers(t *testing.T, db *gorm.DB, n int) []schema.User {
	users := make([]schema.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, schema.User{
			Name:     fmt.Sprintf("user %d", i),
			Phone:    fmt.Sprintf("90000%05d", i),
			Password: []byte("x"),
			Village:  "v", Mandal: "m", District: "d", Location: "v, m, d",
		})
	}
	if err := db.CreateInBatches(users, 100).Error; err != nil {
		t.Fatal(err)
	}
	return users
}

func countNotifications(t *testing.T, db *gorm.DB, where string, args ...interface{}) int64 {
	var count int64
	if err := db.Model(&schema.Notification{}).Where(where, args...).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	return count
}

func TestFanoutExcludesCreator(t *testing.T) {
	db := setupDB(t)
	users := addUsers(t, db, 5)

	d := NewDispatcher(db, Options{Workers: 2, QueueSize: 10})
	defer d.Close()

	creator := users[2].Id
	err := d.Publish(Event{
		Category:        schema.ProductPosted,
		Title:           "New Product Available",
		Message:         "Tomato (Vegetables) has been posted",
		RelatedItemId:   7,
		RelatedItemType: schema.ProductItem,
		ExcludeUserId:   &creator,
	})
	if err != nil {
		t.Fatal(err)
	}
	d.Wait()

	assert.Equal(t, int64(4), countNotifications(t, db, "category = ?", schema.ProductPosted))
	assert.Equal(t, int64(0), countNotifications(t, db, "user_id = ?", creator))

	var n schema.Notification
	if err := db.First(&n, "user_id = ?", users[0].Id).Error; err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "New Product Available", n.Title)
	assert.False(t, n.IsRead)
	assert.Equal(t, uint(7), *n.RelatedItemId)
}

func TestFanoutToAllUsers(t *testing.T) {
	db := setupDB(t)
	addUsers(t, db, 3)

	d := NewDispatcher(db, Options{Workers: 1, QueueSize: 1})
	defer d.Close()

	err := d.Publish(Event{Category: schema.RentalRequirementPosted, Title: "New Rental Requirement", Message: "x", RelatedItemId: 1, RelatedItemType: schema.RentalRequirementItem})
	if err != nil {
		t.Fatal(err)
	}
	d.Wait()

	assert.Equal(t, int64(3), countNotifications(t, db, "1 = 1"))
}

func TestFanoutBatches(t *testing.T) {
	db := setupDB(t)
	users := addUsers(t, db, BatchSize+20)

	d := NewDispatcher(db, Options{})
	defer d.Close()

	creator := users[0].Id
	n, err := d.Deliver(Event{Category: schema.RentalPosted, Title: "t", Message: "m", RelatedItemId: 3, RelatedItemType: schema.RentalItemType, ExcludeUserId: &creator})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, BatchSize+19, n)
	assert.Equal(t, int64(BatchSize+19), countNotifications(t, db, "1 = 1"))
}

func TestPublishRejectsUnknownCategory(t *testing.T) {
	db := setupDB(t)

	d := NewDispatcher(db, Options{Workers: 1})
	defer d.Close()

	assert.Error(t, d.Publish(Event{Category: "live_price_posted"}))
}

func TestPublishAfterCloseDeliversInline(t *testing.T) {
	db := setupDB(t)
	addUsers(t, db, 2)

	d := NewDispatcher(db, Options{Workers: 1, QueueSize: 4})
	d.Close()

	err := d.Publish(Event{Category: schema.ProductRequirementPosted, Title: "New Product Requirement", Message: "x", RelatedItemId: 1, RelatedItemType: schema.ProductRequirementItem})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, int64(2), countNotifications(t, db, "1 = 1"))
}

func TestCloseDrainsQueue(t *testing.T) {
	db := setupDB(t)
	addUsers(t, db, 2)

	d := NewDispatcher(db, Options{Workers: 1, QueueSize: 16})
	for i := 0; i < 10; i++ {
		err := d.Publish(Event{Category: schema.ProductPosted, Title: "t", Message: "m", RelatedItemId: uint(i + 1), RelatedItemType: schema.ProductItem})
		if err != nil {
			t.Fatal(err)
		}
	}
	d.Close()

	assert.Equal(t, int64(20), countNotifications(t, db, "1 = 1"))
}
