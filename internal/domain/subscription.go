package domain

import "time"

// Subscription records the billing plan attached to a user account. The
// tier changes only through confirmed payment-processor events or an
// administrative downgrade, never by direct user input.
type Subscription struct {
	UserID           string
	Tier             string
	Status           string
	CustomerRef      string
	CurrentPeriodEnd *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Subscription statuses mirrored from the payment processor.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)
