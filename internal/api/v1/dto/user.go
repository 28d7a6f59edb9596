package dto

import (
	"time"

	"inkpost/internal/model"
)

// UserResponseDTO is returned in API responses
type UserResponseDTO struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	FirstName          *string    `json:"first_name"`
	LastName           *string    `json:"last_name"`
	Tier               model.Tier `json:"tier"`
	SubscriptionStatus *string    `json:"subscription_status,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func NewUserResponse(u *model.User) UserResponseDTO {
	return UserResponseDTO{
		ID:                 u.ID,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		Tier:               u.Tier,
		SubscriptionStatus: u.BillingSubscriptionStatus,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

// CheckoutResponseDTO carries the hosted checkout URL.
type CheckoutResponseDTO struct {
	URL string `json:"url"`
}

// WebhookResponseDTO acknowledges a webhook delivery.
type WebhookResponseDTO struct {
	Received bool `json:"received"`
}
