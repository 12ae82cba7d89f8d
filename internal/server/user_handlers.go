package server

import (
	"net/http"

	"github.com/Tomlord1122/todo-workshop/internal/service"
)

func (s *Server) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.userService.ListUsers(r.Context())
	if err != nil {
		s.respondWithServiceError(w, err, "retrieve users")
		return
	}
	respondWithJSON(w, http.StatusOK, users)
}

func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	user, err := s.userService.CreateUser(r.Context(), req)
	if err != nil {
		s.respondWithServiceError(w, err, "create user")
		return
	}
	respondWithJSON(w, http.StatusCreated, user)
}

func (s *Server) getUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID provided")
		return
	}

	user, err := s.userService.GetUser(r.Context(), id)
	if err != nil {
		s.respondWithServiceError(w, err, "retrieve user")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func (s *Server) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID provided")
		return
	}

	var req service.UpdateUserRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	user, err := s.userService.UpdateUser(r.Context(), id, req)
	if err != nil {
		s.respondWithServiceError(w, err, "update user")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}
