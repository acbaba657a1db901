package domain

import "time"

// Profile holds the contact fields a visitor submits alongside their phone.
type Profile struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"omitempty,email"`
	City  string `json:"city" validate:"max=80"`
}

// Lead is a verified contact persisted downstream.
// PK: phone (one lead per phone).
type Lead struct {
	LeadID     string    `json:"id" dynamodbav:"lead_id"`
	Phone      PhoneKey  `json:"phone" dynamodbav:"phone"`
	Name       string    `json:"name" dynamodbav:"name"`
	Email      string    `json:"email,omitempty" dynamodbav:"email,omitempty"`
	City       string    `json:"city,omitempty" dynamodbav:"city,omitempty"`
	VerifiedAt time.Time `json:"verified_at" dynamodbav:"verified_at"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
}

// VerifiedPhone is the durable form of a verified flag.
// PK: phone.
type VerifiedPhone struct {
	Phone      PhoneKey  `dynamodbav:"phone"`
	VerifiedAt time.Time `dynamodbav:"verified_at"`
}
