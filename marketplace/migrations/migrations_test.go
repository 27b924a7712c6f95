package migrations

import (
	"localfarmer/marketplace/schema"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigrateSqlite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	sqlDb, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDb.SetMaxOpenConns(1)

	statuses, err := Status(db)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range statuses {
		assert.False(t, s.Applied)
	}

	if err := Migrate(db); err != nil {
		t.Fatal(err)
	}

	for _, model := range schema.AllModels() {
		assert.True(t, db.Migrator().HasTable(model))
	}

	statuses, err = Status(db)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, statuses, 2)
	for _, s := range statuses {
		assert.True(t, s.Applied, s.Id)
	}
}
