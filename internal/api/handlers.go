package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/types"
)

const roomIdPrefix = "room-"

type CreateSessionRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	Duration    int       `json:"duration"`
	RoomId      string    `json:"roomId"`
	Attendees   []string  `json:"attendees"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *WhiteboardApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *WhiteboardApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if s.repo != nil {
		if err := s.repo.Ping(); err != nil {
			s.log.Println("health check:", err)
			errResp := NewServiceUnavailableError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	s.writeJson(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *WhiteboardApp) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// non-browser clients send no origin
		return true
	}

	return slices.Contains(s.allowedOrigins, origin)
}

func (s *WhiteboardApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	c, err := s.hub.Serve(conn)
	if err != nil {
		s.log.Println("serve connection:", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server is shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	s.log.Printf("accepted connection %q from %s", c.Id(), r.RemoteAddr)
}

func (s *WhiteboardApp) toScheduledSession(sess database.Session) types.ScheduledSession {
	out := types.ScheduledSession{
		Id:          sess.Id,
		Title:       sess.Title,
		Description: sess.Description,
		StartTime:   sess.StartTime,
		Duration:    sess.Duration,
		RoomId:      sess.RoomId,
		Attendees:   sess.Attendees,
		CreatedAt:   sess.CreatedAt,
	}
	if out.Attendees == nil {
		out.Attendees = []string{}
	}
	out.Status = out.StatusAt(s.now())

	return out
}

func (s *WhiteboardApp) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.repo.ListSessions()
	if err != nil {
		s.log.Println("list sessions:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := make([]types.ScheduledSession, 0, len(sessions))
	for _, sess := range sessions {
		resp = append(resp, s.toScheduledSession(sess))
	}

	s.writeJson(w, http.StatusOK, resp)
}

func validateCreateSession(req *CreateSessionRequest) *ApiError {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return NewValidationError("title is required")
	}
	if req.StartTime.IsZero() {
		return NewValidationError("startTime is required")
	}
	if req.Duration <= 0 {
		return NewValidationError("duration must be a positive number of minutes")
	}

	attendees := make([]string, 0, len(req.Attendees))
	for _, a := range req.Attendees {
		if a = strings.TrimSpace(a); a != "" {
			attendees = append(attendees, a)
		}
	}
	req.Attendees = attendees

	return nil
}

func (s *WhiteboardApp) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := validateCreateSession(&req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	roomId := strings.TrimSpace(req.RoomId)
	if roomId == "" {
		sid, err := s.generateShortId()
		if err != nil {
			s.log.Print("generateShortId:", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		roomId = roomIdPrefix + sid
	}

	created, err := s.repo.CreateSession(database.CreateSessionParams{
		Id:          s.generateId(),
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		Duration:    req.Duration,
		RoomId:      roomId,
		Attendees:   req.Attendees,
	})
	if err != nil {
		s.log.Println("create session:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, s.toScheduledSession(created))
}

// sessionId returns the path id, or false when it cannot name a session.
func sessionId(r *http.Request) (string, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func (s *WhiteboardApp) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionId(r)
	if !ok {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sess, err := s.repo.GetSession(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrSessionNotFound) {
			errResp = NewNotFoundError()
		} else {
			s.log.Println("get session:", err)
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, s.toScheduledSession(sess))
}

func (s *WhiteboardApp) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionId(r)
	if !ok {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.repo.DeleteSession(id); err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrSessionNotFound) {
			errResp = NewNotFoundError()
		} else {
			s.log.Println("delete session:", err)
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
