package schema

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	Id uint `gorm:"primaryKey"`

	Name     string `gorm:"size:100;not null"`
	Email    string `gorm:"size:254;index:idx_users_email"`
	Phone    string `gorm:"size:10;uniqueIndex:idx_users_phone;not null"`
	Password []byte `gorm:"not null"`

	Village  string `gorm:"size:100;not null"`
	Mandal   string `gorm:"size:100;not null"`
	District string `gorm:"size:100;not null"`
	Location string `gorm:"size:320;not null"`

	UserType          string `gorm:"size:50;not null;default:'farmer'"`
	PreferredLanguage string `gorm:"size:10;not null;default:'en'"`
	PhoneVerified     bool   `gorm:"not null;default:false"`
	ProfilePhoto      string

	CreatedAt time.Time
}

type Product struct {
	Id uint `gorm:"primaryKey"`

	UserId uint  `gorm:"not null;index"`
	User   *User `gorm:"constraint:OnDelete:CASCADE"`

	Category    string `gorm:"size:100;not null"`
	Name        string `gorm:"size:200;not null"`
	Description string
	Quantity    float64 `gorm:"not null"`
	Unit        string  `gorm:"size:20;not null;default:'kg'"`
	Price       float64 `gorm:"not null"`
	Status      string  `gorm:"size:20;not null;default:'active'"`

	CreatedAt time.Time `gorm:"index"`
}

// Attachment is an image or video path owned by a product, rental item, user
// feedback or live price. Ordering within an owner follows Position.
type Attachment struct {
	Id uint `gorm:"primaryKey"`

	OwnerType string `gorm:"size:30;not null;index:idx_attachments_owner"`
	OwnerId   uint   `gorm:"not null;index:idx_attachments_owner"`
	Kind      string `gorm:"size:10;not null;check:chk_attachments_kind,kind IN ('image', 'video')"`
	Path      string `gorm:"size:500;not null"`
	Position  int    `gorm:"not null"`

	CreatedAt time.Time
}

type RentalItem struct {
	Id uint `gorm:"primaryKey"`

	UserId uint  `gorm:"not null;index"`
	User   *User `gorm:"constraint:OnDelete:CASCADE"`

	Name               string `gorm:"size:200;not null"`
	Category           string `gorm:"size:100;not null"`
	Description        string
	PricePerHour       *float64
	PricePerDay        float64 `gorm:"not null"`
	Location           string  `gorm:"size:320;not null"`
	AvailabilityStatus string  `gorm:"size:20;not null;default:'available'"`

	CreatedAt time.Time `gorm:"index"`
}

type RentalMedia struct {
	Id uint `gorm:"primaryKey"`

	RentalId uint        `gorm:"not null;index"`
	Rental   *RentalItem `gorm:"constraint:OnDelete:CASCADE"`

	MediaType string `gorm:"size:10;not null;check:chk_rental_media_type,media_type IN ('image', 'video')"`
	MediaPath string `gorm:"size:500;not null"`
	Filename  string `gorm:"size:255"`
	FileSize  int64

	UploadedAt time.Time `gorm:"autoCreateTime"`
}

func (RentalMedia) TableName() string {
	return "rental_media"
}

type RentalFeedback struct {
	Id uint `gorm:"primaryKey"`

	RentalId uint        `gorm:"not null;index"`
	Rental   *RentalItem `gorm:"constraint:OnDelete:CASCADE"`

	UserId *uint `gorm:"index"`
	User   *User `gorm:"constraint:OnDelete:SET NULL"`

	ReviewerName string `gorm:"size:100"`
	Rating       int    `gorm:"not null;check:chk_rental_feedback_rating,rating >= 1 AND rating <= 5"`
	Comment      string

	CreatedAt time.Time
}

func (RentalFeedback) TableName() string {
	return "rental_feedback"
}

type UserFeedback struct {
	Id uint `gorm:"primaryKey"`

	UserId *uint `gorm:"uniqueIndex:idx_user_feedback_product_user"`
	User   *User `gorm:"constraint:OnDelete:SET NULL"`

	FarmerId uint  `gorm:"not null;index"`
	Farmer   *User `gorm:"foreignKey:FarmerId;constraint:OnDelete:CASCADE"`

	ProductId *uint `gorm:"uniqueIndex:idx_user_feedback_product_user"`

	ReviewerName  string `gorm:"size:100;not null"`
	ReviewerPhone string `gorm:"size:15"`
	Rating        int    `gorm:"not null;check:chk_user_feedback_rating,rating >= 1 AND rating <= 5"`
	Comment       string

	CreatedAt time.Time
}

func (UserFeedback) TableName() string {
	return "user_feedback"
}

type CustomerRequirement struct {
	Id uint `gorm:"primaryKey"`

	UserId *uint `gorm:"index"`

	CustomerName          string `gorm:"size:100;not null"`
	ProductName           string `gorm:"size:200;not null"`
	Quantity              string `gorm:"size:100;not null"`
	Location              string `gorm:"size:320;not null"`
	PhoneNumber           string `gorm:"size:15;not null"`
	PinCode               string `gorm:"size:10"`
	SpecialInstructions   string
	PreferredDeliveryDate string `gorm:"size:20"`
	Status                string `gorm:"size:20;not null;default:'active'"`

	CreatedAt time.Time
}

type RentalRequirement struct {
	Id uint `gorm:"primaryKey"`

	UserId *uint `gorm:"index"`

	FarmerName     string `gorm:"size:100;not null"`
	PhoneNumber    string `gorm:"size:15;not null"`
	RentalCategory string `gorm:"size:100;not null"`
	FieldArea      string `gorm:"size:100"`
	Village        string `gorm:"size:100"`
	Mandal         string `gorm:"size:100"`
	District       string `gorm:"size:100"`
	Status         string `gorm:"size:20;not null;default:'active'"`

	CreatedAt time.Time
}

type GovernmentScheme struct {
	Id uint `gorm:"primaryKey"`

	SchemeName        string `gorm:"size:300;not null"`
	StartDate         string `gorm:"size:50"`
	EndDate           string `gorm:"size:50"`
	Description       string
	Benefits          string
	Eligibility       string
	RequiredDocuments string
	ApplyLink         string `gorm:"size:500"`
	OfficialWebsite   string `gorm:"size:500"`
	State             string `gorm:"size:100"`
	Category          string `gorm:"size:100"`
	LastUpdated       string `gorm:"size:50"`

	CreatedAt time.Time
}

type LivePrice struct {
	Id uint `gorm:"primaryKey"`

	UserId uint  `gorm:"not null;index"`
	User   *User `gorm:"constraint:OnDelete:CASCADE"`

	ProductName string  `gorm:"size:200;not null"`
	Category    string  `gorm:"size:100;not null"`
	MinPrice    float64 `gorm:"not null"`
	MaxPrice    float64 `gorm:"not null"`
	PriceUnit   string  `gorm:"size:20;not null;default:'Kg'"`
	PriceTrend  string  `gorm:"size:20;not null;check:chk_live_prices_trend,price_trend IN ('increased', 'decreased', 'stable')"`
	MarketName  string  `gorm:"size:200"`
	Phone       string  `gorm:"size:15;not null"`
	Area        string  `gorm:"size:100"`
	City        string  `gorm:"size:100"`
	District    string  `gorm:"size:100"`
	State       string  `gorm:"size:100"`
	PinCode     string  `gorm:"size:10"`
	Latitude    *float64
	Longitude   *float64

	CreatedAt time.Time `gorm:"index"`
}

type LivePriceFeedback struct {
	Id uint `gorm:"primaryKey"`

	PriceId   uint       `gorm:"not null;index"`
	LivePrice *LivePrice `gorm:"foreignKey:PriceId;constraint:OnDelete:CASCADE"`

	UserId *uint `gorm:"index"`

	FarmerName string `gorm:"size:100"`
	Rating     int    `gorm:"not null;check:chk_live_price_feedback_rating,rating >= 1 AND rating <= 5"`
	Comment    string

	CreatedAt time.Time
}

func (LivePriceFeedback) TableName() string {
	return "live_price_feedback"
}

type Notification struct {
	Id uint `gorm:"primaryKey"`

	UserId uint  `gorm:"not null;index"`
	User   *User `gorm:"constraint:OnDelete:CASCADE"`

	Category        string `gorm:"size:50;not null;check:chk_notifications_category,category IN ('product_posted', 'rental_posted', 'product_requirement_posted', 'rental_requirement_posted')"`
	Title           string `gorm:"size:200;not null"`
	Message         string `gorm:"not null"`
	RelatedItemId   *uint
	RelatedItemType string `gorm:"size:50"`
	IsRead          bool   `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"index"`
}

type UserHistory struct {
	Id uint `gorm:"primaryKey"`

	UserId uint  `gorm:"not null;index"`
	User   *User `gorm:"constraint:OnDelete:CASCADE"`

	ActionType   string `gorm:"size:20;not null;index"`
	ItemType     string `gorm:"size:20;not null;index"`
	ItemId       *uint
	ItemName     string `gorm:"size:300;not null"`
	OwnerName    string `gorm:"size:100"`
	Location     string `gorm:"size:320"`
	ActionStatus string `gorm:"size:20;not null;default:'completed'"`
	ExtraData    datatypes.JSON

	CreatedAt time.Time `gorm:"index"`
}

func (UserHistory) TableName() string {
	return "user_history"
}

type Transaction struct {
	Id uint `gorm:"primaryKey"`

	UserId uint  `gorm:"not null;index"`
	User   *User `gorm:"constraint:OnDelete:CASCADE"`

	Type        string `gorm:"size:50;not null"`
	Description string `gorm:"not null"`
	Amount      float64

	CreatedAt time.Time
}

type ContactMessage struct {
	Id uint `gorm:"primaryKey"`

	Name        string `gorm:"size:100;not null"`
	ContactInfo string `gorm:"size:254;not null"`
	Description string `gorm:"not null"`

	CreatedAt time.Time
}

type SavedItem struct {
	Id uint `gorm:"primaryKey"`

	UserId uint  `gorm:"not null;uniqueIndex:idx_saved_items_user_item"`
	User   *User `gorm:"constraint:OnDelete:CASCADE"`

	ItemType string `gorm:"size:20;not null;uniqueIndex:idx_saved_items_user_item"`
	ItemId   uint   `gorm:"not null;uniqueIndex:idx_saved_items_user_item"`

	CreatedAt time.Time
}

// AllModels lists every table in creation order.
func AllModels() []interface{} {
	return []interface{}{
		&User{}, &Product{}, &Attachment{},
		&RentalItem{}, &RentalMedia{}, &RentalFeedback{},
		&UserFeedback{}, &CustomerRequirement{}, &RentalRequirement{},
		&GovernmentScheme{}, &LivePrice{}, &LivePriceFeedback{},
		&Notification{}, &UserHistory{}, &Transaction{}, &ContactMessage{},
		&SavedItem{},
	}
}
