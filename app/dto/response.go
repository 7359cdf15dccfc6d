package dto

import "github.com/pinceletas/user-auth-service/app/entity"

type AuthResponse struct {
	Token string `json:"token"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type UserResponse struct {
	ID         uint64 `json:"id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Active     bool   `json:"active"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	Provider      string `json:"provider,omitempty"`
	TermsAccepted bool   `json:"terms_accepted"`
}

type TermsStatusResponse struct {
	TermsAccepted bool `json:"terms_accepted"`
}

func NewUserResponse(user *entity.User) *UserResponse {
	return &UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		Role:       user.Role,
		Active:     user.Active,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Phone:      user.Phone.String,
		Street:     user.Street.String,
		Number:     user.Number.String,
		City:       user.City.String,
		Province:   user.Province.String,
		Country:    user.Country.String,
		PostalCode:    user.PostalCode.String,
		Provider:      user.Provider.String,
		TermsAccepted: user.TermsAccepted,
	}
}
