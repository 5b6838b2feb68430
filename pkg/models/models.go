package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/biblegpt/api/pkg/domain"
)

// ErrorResponse is the error body every endpoint returns
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse is a generic acknowledgement body
type SuccessResponse struct {
	Message string `json:"message"`
}

// WebhookAck is the body returned to the billing provider for every
// acknowledged webhook delivery
type WebhookAck struct {
	Received bool `json:"received"`
}

// RegisterRequest creates the local account row after identity-platform
// sign-up. The email comes from the verified token, never the body.
type RegisterRequest struct {
	Name         *string `json:"name,omitempty"`
	ReferralCode string  `json:"referralCode,omitempty"`
}

// CheckoutRequest starts the subscription checkout flow
type CheckoutRequest struct {
	PriceID string `json:"priceId" validate:"required"`
}

// CheckoutResponse carries what the frontend needs to collect a card
type CheckoutResponse struct {
	ClientSecret   string `json:"clientSecret"`
	CustomerID     string `json:"customerId"`
	SubscriptionID string `json:"subscriptionId"`
}

// UpdateProfileRequest updates the mutable profile fields
type UpdateProfileRequest struct {
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty" validate:"omitempty,url"`
}

// ApplyReferralRequest applies a referral code to the caller
type ApplyReferralRequest struct {
	Code string `json:"code" validate:"required"`
}

// SubscriptionResponse is the subscription summary returned to the
// frontend
type SubscriptionResponse struct {
	Status            string     `json:"status"`
	TrialEndsAt       *time.Time `json:"trialEndsAt,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancelAtPeriodEnd"`
	PriceID           *string    `json:"priceId,omitempty"`
	HasAccess         bool       `json:"hasAccess"`
}

// UserResponse is the profile shape returned to the frontend
type UserResponse struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         *string   `json:"name,omitempty"`
	AvatarURL    *string   `json:"avatarUrl,omitempty"`
	ReferralCode string    `json:"referralCode"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AccountResponse combines the profile with its subscription summary
type AccountResponse struct {
	User         UserResponse          `json:"user"`
	Subscription *SubscriptionResponse `json:"subscription,omitempty"`
}

// ReferralStatsResponse summarizes the caller's referral activity
type ReferralStatsResponse struct {
	Code     string `json:"code"`
	Total    int    `json:"total"`
	Rewarded int    `json:"rewarded"`
}

// ValidateReferralResponse is the public pre-signup code check
type ValidateReferralResponse struct {
	Valid        bool    `json:"valid"`
	ReferrerName *string `json:"referrerName,omitempty"`
}

// DevotionalResponse is the daily devotional content
type DevotionalResponse struct {
	Date      string `json:"date"`
	Title     string `json:"title"`
	Verse     string `json:"verse"`
	VerseText string `json:"verseText"`
	Content   string `json:"content"`
	Prayer    string `json:"prayer"`
}

// NewUserResponse maps a domain user onto its response shape
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		AvatarURL:    u.AvatarURL,
		ReferralCode: u.ReferralCode,
		CreatedAt:    u.CreatedAt,
	}
}

// NewSubscriptionResponse maps a subscription row onto its response
// shape; nil in, nil out
func NewSubscriptionResponse(sub *domain.Subscription) *SubscriptionResponse {
	if sub == nil {
		return nil
	}
	return &SubscriptionResponse{
		Status:            string(sub.Status),
		TrialEndsAt:       sub.TrialEndsAt,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		PriceID:           sub.StripePriceID,
		HasAccess:         sub.Status.GrantsAccess(),
	}
}

// NewDevotionalResponse maps a devotional row onto its response shape
func NewDevotionalResponse(d *domain.Devotional) DevotionalResponse {
	return DevotionalResponse{
		Date:      d.Date.Format("2006-01-02"),
		Title:     d.Title,
		Verse:     d.Verse,
		VerseText: d.VerseText,
		Content:   d.Content,
		Prayer:    d.Prayer,
	}
}
