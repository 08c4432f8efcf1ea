package httpserver

import (
	"net/http"
	"time"

	usercommands "cratewatch/contexts/identity/user-service/application/commands"
	userentities "cratewatch/contexts/identity/user-service/domain/entities"
)

type userResponse struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Timezone    string    `json:"timezone,omitempty"`
	Currency    string    `json:"currency"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toUserResponse(user userentities.User) userResponse {
	return userResponse{
		UserID:      user.UserID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Timezone:    user.Timezone,
		Currency:    user.Currency,
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

type createUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
	Currency    string `json:"currency"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.users.CreateUser.Execute(r.Context(), usercommands.CreateUserCommand{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Timezone:    req.Timezone,
		Currency:    req.Currency,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	user, err := s.users.GetUser.Execute(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type updateUserRequest struct {
	DisplayName *string `json:"display_name"`
	Timezone    *string `json:"timezone"`
	Currency    *string `json:"currency"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.users.UpdateUser.Execute(r.Context(), usercommands.UpdateUserCommand{
		UserID:      userID,
		DisplayName: req.DisplayName,
		Timezone:    req.Timezone,
		Currency:    req.Currency,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleDeactivateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	user, err := s.users.DeactivateUser.Execute(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
