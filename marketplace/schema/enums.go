package schema

import (
	"fmt"
	"slices"
	"strings"
)

const (
	ProductPosted            = "product_posted"
	RentalPosted             = "rental_posted"
	ProductRequirementPosted = "product_requirement_posted"
	RentalRequirementPosted  = "rental_requirement_posted"
)

func CheckValidNotificationCategory(category string) error {
	if category == ProductPosted || category == RentalPosted || category == ProductRequirementPosted || category == RentalRequirementPosted {
		return nil
	}
	return fmt.Errorf("invalid notification category '%v'", category)
}

const (
	ImageMedia = "image"
	VideoMedia = "video"
)

// Owner types for attachments and notification related items.
const (
	ProductItem            = "product"
	RentalItemType         = "rental"
	UserFeedbackItem       = "user_feedback"
	LivePriceItem          = "live_price"
	ProductRequirementItem = "product_requirement"
	RentalRequirementItem  = "rental_requirement"
)

const (
	PriceIncreased = "increased"
	PriceDecreased = "decreased"
	PriceStable    = "stable"
)

func CheckValidPriceTrend(trend string) error {
	if trend == PriceIncreased || trend == PriceDecreased || trend == PriceStable {
		return nil
	}
	return fmt.Errorf("invalid price trend '%v', must be 'increased', 'decreased', or 'stable'", trend)
}

var ActionTypes = []string{"contacted", "liked", "feedback", "viewed", "created", "saved", "rented", "responded"}

var ItemTypes = []string{"product", "rental", "requirement", "scheme"}

func CheckValidActionType(actionType string) error {
	if slices.Contains(ActionTypes, actionType) {
		return nil
	}
	return fmt.Errorf("Invalid action_type. Must be one of: %v", strings.Join(ActionTypes, ", "))
}

func CheckValidItemType(itemType string) error {
	if slices.Contains(ItemTypes, itemType) {
		return nil
	}
	return fmt.Errorf("Invalid item_type. Must be one of: %v", strings.Join(ItemTypes, ", "))
}

const (
	ActionContacted = "contacted"
	StatusCompleted = "completed"
	StatusActive    = "active"
	StatusAvailable = "available"
)
