package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Tomlord1122/todo-workshop/internal/domain"
)

type notificationResponse struct {
	ID               uint                    `json:"id"`
	TodoID           *uint                   `json:"todo_id"`
	UserID           uint                    `json:"user_id"`
	Message          string                  `json:"message"`
	NotificationType domain.NotificationType `json:"notification_type"`
	Event            domain.EventKind        `json:"event,omitempty"`
	Sent             bool                    `json:"sent"`
	SentAt           *string                 `json:"sent_at"`
	CreatedAt        string                  `json:"created_at"`
}

func toNotificationResponses(ns []domain.Notification) []notificationResponse {
	out := make([]notificationResponse, 0, len(ns))
	for _, n := range ns {
		resp := notificationResponse{
			ID:               n.ID,
			TodoID:           n.TodoID,
			UserID:           n.UserID,
			Message:          n.Message,
			NotificationType: n.Type,
			Event:            n.Event,
			Sent:             n.Sent,
			CreatedAt:        n.CreatedAt.Format(time.RFC3339),
		}
		if n.SentAt != nil {
			at := n.SentAt.Format(time.RFC3339)
			resp.SentAt = &at
		}
		out = append(out, resp)
	}
	return out
}

// listNotificationsHandler serves GET /api/notifications?user_id=&limit=&pending_only=.
func (s *Server) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUint(r, "user_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if userID == nil {
		respondWithError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
	}

	pendingOnly, err := queryBool(r, "pending_only")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var ns []domain.Notification
	if pendingOnly != nil && *pendingOnly {
		ns, err = s.notifications.GetPendingNotifications(r.Context(), *userID, limit)
	} else {
		ns, err = s.notifications.ListNotifications(r.Context(), *userID, limit)
	}
	if err != nil {
		s.respondWithServiceError(w, err, "retrieve notifications")
		return
	}

	respondWithJSON(w, http.StatusOK, toNotificationResponses(ns))
}

func (s *Server) markNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid notification ID provided")
		return
	}

	found, err := s.notifications.MarkNotificationSent(r.Context(), id)
	if err != nil {
		s.respondWithServiceError(w, err, "mark notification")
		return
	}
	if !found {
		respondWithError(w, http.StatusNotFound, "Notification not found")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

// checkDueHandler runs the due-soon scan on demand.
func (s *Server) checkDueHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := s.notifications.CheckDueTodos(r.Context())
	if err != nil {
		s.logger.Error("due-soon scan", zap.Int("notified_before_error", len(ids)), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to check due todos")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"message":            fmt.Sprintf("Checked due todos, %d notifications sent", len(ids)),
		"notifications_sent": ids,
	})
}

// digestHandler sends the user one email covering all of their todos due
// soon.
func (s *Server) digestHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUint(r, "user_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if userID == nil {
		respondWithError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	res, ids, err := s.notifications.SendDueDigest(r.Context(), *userID)
	if err != nil {
		s.respondWithServiceError(w, err, "send digest")
		return
	}
	if ids == nil {
		ids = []uint{}
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":   res.Status.String(),
		"reason":   res.Reason,
		"todo_ids": ids,
	})
}
