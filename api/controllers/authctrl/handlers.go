package authctrl

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sevakart/sevakart-backend/api/responses"
	"github.com/sevakart/sevakart-backend/api/validators"
	"github.com/sevakart/sevakart-backend/internal/auth"
	"github.com/sevakart/sevakart-backend/pkg/db/models"
	"github.com/sevakart/sevakart-backend/pkg/logger"
)

type registerRequest struct {
	Name         string  `json:"name" validate:"required,min=1,max=120"`
	Email        string  `json:"email" validate:"required,email"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Password     string  `json:"password" validate:"required,min=8,max=128"`
	ReferralCode string  `json:"referral_code,omitempty" validate:"omitempty,max=16"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userDTO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        *string   `json:"phone,omitempty"`
	Role         string    `json:"role"`
	ReferralCode string    `json:"referral_code"`
}

type sessionDTO struct {
	User        userDTO   `json:"user"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toSessionDTO(session *auth.Session) sessionDTO {
	return sessionDTO{
		User:        toUserDTO(session.User),
		AccessToken: session.AccessToken,
		ExpiresAt:   session.ExpiresAt,
	}
}

func toUserDTO(user *models.User) userDTO {
	return userDTO{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Phone:        user.Phone,
		Role:         string(user.Role),
		ReferralCode: user.ReferralCode,
	}
}

// Register wires the sign-up endpoint into the HTTP layer.
func Register(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Register(r.Context(), auth.RegisterInput{
			Name:         body.Name,
			Email:        body.Email,
			Phone:        body.Phone,
			Password:     body.Password,
			ReferralCode: body.ReferralCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toSessionDTO(session))
	}
}

// Login wires the login endpoint into the HTTP layer.
func Login(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Login(r.Context(), body.Email, body.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toSessionDTO(session))
	}
}
