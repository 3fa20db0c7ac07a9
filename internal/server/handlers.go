package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hivedesk/hivedesk/internal/chat"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.store.UserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		// The same response for unknown user and bad password.
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := VerifyPassword(req.Password, user.HashedPassword); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.tokens.Create(user.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token creation failed")
		return
	}
	if err := s.store.SetOnline(r.Context(), user.ID, true); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("presence update failed")
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.store.SetOnline(r.Context(), user.ID, false); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("presence update failed")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Director  bool   `json:"is_director"`
	Parent    bool   `json:"is_parent"`
	Online    bool   `json:"is_online"`
}

func toUserResponse(u User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Director:  u.Director,
		Parent:    !u.Director,
		Online:    u.Online,
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*user))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if CurrentUser(r) == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var directorFilter *bool
	switch {
	case r.URL.Query().Get("is_parent") == "true":
		f := false
		directorFilter = &f
	case r.URL.Query().Get("is_director") == "true":
		f := true
		directorFilter = &f
	}

	users, err := s.store.ListUsers(r.Context(), directorFilter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	msgs, err := s.store.MessagesVisibleTo(r.Context(), user.ID, user.Director)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

type sendMessageRequest struct {
	Receiver int64  `json:"receiver"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Receiver == 0 || strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "receiver and body are required")
		return
	}
	if req.Receiver == user.ID {
		writeError(w, http.StatusBadRequest, "cannot message yourself")
		return
	}
	receiver, err := s.store.UserByID(r.Context(), req.Receiver)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusBadRequest, "unknown receiver")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	msg, err := s.store.InsertMessage(r.Context(), user.ID, receiver.ID, req.Subject, req.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Stand-in for the portal's new-message email notification hook.
	s.log.Info().
		Int64("message_id", msg.ID).
		Str("from", user.DisplayName()).
		Str("to", receiver.DisplayName()).
		Msg("new message notification")

	msg.SenderName = user.DisplayName()
	msg.ReceiverName = receiver.DisplayName()
	writeJSON(w, http.StatusCreated, msg)
}

type markReadRequest struct {
	Counterpart int64 `json:"counterpart"`
}

type markReadResponse struct {
	Marked int64 `json:"marked"`
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Counterpart == 0 {
		writeError(w, http.StatusBadRequest, "counterpart is required")
		return
	}

	n, err := s.store.MarkReadFrom(r.Context(), user.ID, req.Counterpart, user.Director)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, markReadResponse{Marked: n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "time": time.Now().UTC().Format(time.RFC3339)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
