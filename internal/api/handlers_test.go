package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-whiteboard/internal/config"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/protocol"
	"github.com/npezzotti/go-whiteboard/internal/server"
	"github.com/npezzotti/go-whiteboard/internal/stats"
	"github.com/npezzotti/go-whiteboard/internal/testutil"
	"github.com/npezzotti/go-whiteboard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testOrigin    = "http://localhost:5173"
	testSessionId = "5b0c2a36-6a8e-4c43-9e55-7a54d0c3f2a1"
)

var testNow = time.Date(2026, 5, 1, 10, 15, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		ServerAddr:     "localhost:5000",
		AllowedOrigins: []string{testOrigin, "http://localhost:3000"},
	}
}

// newTestApp builds an app with deterministic ids and clock. repo may be nil.
func newTestApp(t *testing.T, hub *server.Hub, repo database.SessionRepository) *WhiteboardApp {
	app := NewWhiteboardApp(http.NewServeMux(), testutil.TestLogger(t), hub, repo, testConfig())
	app.generateId = func() string { return testSessionId }
	app.generateShortId = func() (string, error) { return "EoGKUXPHgz", nil }
	app.now = func() time.Time { return testNow }
	return app
}

func newTestHub(t *testing.T) *server.Hub {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return(nil)
	su.On("Incr", mock.Anything).Return(nil).Maybe()
	su.On("Decr", mock.Anything).Return(nil).Maybe()

	hub := server.NewHub(testutil.TestLogger(t), server.NewRoomStore(), su)
	go hub.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hub.Shutdown(ctx)
	})

	return hub
}

func storedSession(start time.Time) database.Session {
	return database.Session{
		Id:          testSessionId,
		Title:       "Design review",
		Description: "Walk through the onboarding flow",
		StartTime:   start,
		Duration:    60,
		RoomId:      "room-abc123",
		Attendees:   []string{"ann@example.com"},
		CreatedAt:   testNow.Add(-24 * time.Hour),
	}
}

func TestNewWhiteboardApp(t *testing.T) {
	mux := http.NewServeMux()
	logger := testutil.TestLogger(t)
	hub := &server.Hub{}
	repo := &database.MockSessionRepository{}
	cfg := testConfig()

	app := NewWhiteboardApp(mux, logger, hub, repo, cfg)

	assert.NotNil(t, app, "expected app to be initialized")
	assert.NotNil(t, app.srv, "expected http server to be initialized")
	assert.Equal(t, logger, app.log, "expected logger to be set")
	assert.Equal(t, repo, app.repo, "expected repo to be set")
	assert.Same(t, hub, app.hub, "expected hub to be set")
	assert.Equal(t, cfg.AllowedOrigins, app.allowedOrigins, "expected allowed origins to be set")
	assert.Equal(t, cfg.ServerAddr, app.srv.Addr, "expected server address to match config")
}

func TestNewWhiteboardApp_WithoutRepository(t *testing.T) {
	app := newTestApp(t, nil, nil)

	rr := httptest.NewRecorder()
	app.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code, "expected session routes to be disabled")
}

func Test_healthCheck(t *testing.T) {
	t.Run("without database", func(t *testing.T) {
		app := newTestApp(t, nil, nil)
		rr := httptest.NewRecorder()
		app.healthCheck(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	})

	mockRepo := &database.MockSessionRepository{}
	defer mockRepo.AssertExpectations(t)

	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo.On("Ping").Return(tc.mockErr).Once()
			app := newTestApp(t, nil, mockRepo)
			rr := httptest.NewRecorder()
			app.healthCheck(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusServiceUnavailable, rr.Code, "expected status code to be 503")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
			}
		})
	}
}

func TestCreateSessionHandler(t *testing.T) {
	start := testNow.Add(time.Hour)

	tcases := []struct {
		name         string
		body         string
		expectCreate bool
		wantRoomId   string
		mockErr      error
		expectedCode int
		expectedMsg  string
	}{
		{
			name:         "generates a room id",
			body:         `{"title":" Design review ","startTime":"2026-05-01T11:15:00Z","duration":60,"attendees":["ann@example.com"," ",""]}`,
			expectCreate: true,
			wantRoomId:   "room-EoGKUXPHgz",
			expectedCode: http.StatusCreated,
		},
		{
			name:         "keeps a supplied room id",
			body:         `{"title":"Design review","startTime":"2026-05-01T11:15:00Z","duration":60,"roomId":"team-board"}`,
			expectCreate: true,
			wantRoomId:   "team-board",
			expectedCode: http.StatusCreated,
		},
		{
			name:         "invalid json body",
			body:         `not json`,
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "bad request",
		},
		{
			name:         "missing title",
			body:         `{"title":"  ","startTime":"2026-05-01T11:15:00Z","duration":60}`,
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "title is required",
		},
		{
			name:         "missing start time",
			body:         `{"title":"Design review","duration":60}`,
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "startTime is required",
		},
		{
			name:         "non-positive duration",
			body:         `{"title":"Design review","startTime":"2026-05-01T11:15:00Z","duration":0}`,
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "duration must be a positive number of minutes",
		},
		{
			name:         "repository error",
			body:         `{"title":"Design review","startTime":"2026-05-01T11:15:00Z","duration":60}`,
			expectCreate: true,
			wantRoomId:   "room-EoGKUXPHgz",
			mockErr:      errors.New("insert failed"),
			expectedCode: http.StatusInternalServerError,
			expectedMsg:  "internal server error",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockSessionRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.expectCreate {
				created := storedSession(start)
				created.RoomId = tc.wantRoomId
				if tc.mockErr != nil {
					created = database.Session{}
				}

				mockRepo.On("CreateSession", mock.MatchedBy(func(p database.CreateSessionParams) bool {
					return p.Id == testSessionId &&
						p.Title == "Design review" &&
						p.StartTime.Equal(start) &&
						p.Duration == 60 &&
						p.RoomId == tc.wantRoomId
				})).Return(created, tc.mockErr).Once()
			}

			app := newTestApp(t, nil, mockRepo)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(tc.body))
			app.createSession(rr, req)

			require.Equal(t, tc.expectedCode, rr.Code)
			if tc.expectedMsg != "" {
				var apiErr ApiError
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&apiErr))
				assert.Equal(t, tc.expectedMsg, apiErr.Message)
				return
			}

			var got types.ScheduledSession
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
			assert.Equal(t, testSessionId, got.Id)
			assert.Equal(t, tc.wantRoomId, got.RoomId)
			assert.Equal(t, types.SessionUpcoming, got.Status)
		})
	}
}

func TestCreateSessionHandler_TrimsAttendees(t *testing.T) {
	mockRepo := &database.MockSessionRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("CreateSession", mock.MatchedBy(func(p database.CreateSessionParams) bool {
		return assert.ObjectsAreEqual([]string{"ann@example.com", "bob@example.com"}, p.Attendees)
	})).Return(storedSession(testNow), nil).Once()

	app := newTestApp(t, nil, mockRepo)
	rr := httptest.NewRecorder()
	body := `{"title":"Sync","startTime":"2026-05-01T10:15:00Z","duration":15,"attendees":[" ann@example.com","","bob@example.com "]}`
	app.createSession(rr, httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestListSessionsHandler(t *testing.T) {
	t.Run("derives status", func(t *testing.T) {
		mockRepo := &database.MockSessionRepository{}
		defer mockRepo.AssertExpectations(t)

		past := storedSession(testNow.Add(-2 * time.Hour))
		live := storedSession(testNow.Add(-10 * time.Minute))
		live.Attendees = nil
		future := storedSession(testNow.Add(time.Hour))
		mockRepo.On("ListSessions").Return([]database.Session{past, live, future}, nil).Once()

		app := newTestApp(t, nil, mockRepo)
		rr := httptest.NewRecorder()
		app.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		var got []types.ScheduledSession
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		require.Len(t, got, 3)
		assert.Equal(t, types.SessionFinished, got[0].Status)
		assert.Equal(t, types.SessionLive, got[1].Status)
		assert.Equal(t, types.SessionUpcoming, got[2].Status)
		assert.NotNil(t, got[1].Attendees, "expected attendees to encode as an empty list")
	})

	t.Run("empty list", func(t *testing.T) {
		mockRepo := &database.MockSessionRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("ListSessions").Return([]database.Session{}, nil).Once()

		app := newTestApp(t, nil, mockRepo)
		rr := httptest.NewRecorder()
		app.listSessions(rr, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})

	t.Run("repository error", func(t *testing.T) {
		mockRepo := &database.MockSessionRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("ListSessions").Return(nil, errors.New("db down")).Once()

		app := newTestApp(t, nil, mockRepo)
		rr := httptest.NewRecorder()
		app.listSessions(rr, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestGetSessionHandler(t *testing.T) {
	tcases := []struct {
		name         string
		id           string
		mockSession  database.Session
		mockErr      error
		expectLookup bool
		expectedCode int
	}{
		{
			name:         "found",
			id:           testSessionId,
			mockSession:  storedSession(testNow),
			expectLookup: true,
			expectedCode: http.StatusOK,
		},
		{
			name:         "not found",
			id:           testSessionId,
			mockErr:      database.ErrSessionNotFound,
			expectLookup: true,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "repository error",
			id:           testSessionId,
			mockErr:      errors.New("db down"),
			expectLookup: true,
			expectedCode: http.StatusInternalServerError,
		},
		{
			name:         "malformed id",
			id:           "not-a-uuid",
			expectedCode: http.StatusNotFound,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockSessionRepository{}
			defer mockRepo.AssertExpectations(t)
			if tc.expectLookup {
				mockRepo.On("GetSession", tc.id).Return(tc.mockSession, tc.mockErr).Once()
			}

			app := newTestApp(t, nil, mockRepo)
			rr := httptest.NewRecorder()
			app.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions/"+tc.id, nil))

			require.Equal(t, tc.expectedCode, rr.Code)
			if tc.expectedCode == http.StatusOK {
				var got types.ScheduledSession
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
				assert.Equal(t, tc.mockSession.Title, got.Title)
				assert.Equal(t, types.SessionLive, got.Status)
			}
		})
	}
}

func TestDeleteSessionHandler(t *testing.T) {
	tcases := []struct {
		name         string
		id           string
		mockErr      error
		expectDelete bool
		expectedCode int
	}{
		{
			name:         "deleted",
			id:           testSessionId,
			expectDelete: true,
			expectedCode: http.StatusNoContent,
		},
		{
			name:         "not found",
			id:           testSessionId,
			mockErr:      database.ErrSessionNotFound,
			expectDelete: true,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "repository error",
			id:           testSessionId,
			mockErr:      errors.New("db down"),
			expectDelete: true,
			expectedCode: http.StatusInternalServerError,
		},
		{
			name:         "malformed id",
			id:           "42",
			expectedCode: http.StatusNotFound,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockSessionRepository{}
			defer mockRepo.AssertExpectations(t)
			if tc.expectDelete {
				mockRepo.On("DeleteSession", tc.id).Return(tc.mockErr).Once()
			}

			app := newTestApp(t, nil, mockRepo)
			rr := httptest.NewRecorder()
			app.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+tc.id, nil))

			assert.Equal(t, tc.expectedCode, rr.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t, nil, &database.MockSessionRepository{})

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	app.srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, testOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func Test_serveWs(t *testing.T) {
	hub := newTestHub(t)
	app := newTestApp(t, hub, nil)
	srv := httptest.NewServer(app.srv.Handler)
	defer srv.Close()

	t.Run("allowed origin", func(t *testing.T) {
		header := http.Header{}
		header.Set("Origin", testOrigin)
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(protocol.ClientMessage{
			JoinRoom: &protocol.JoinRoom{RoomId: "room-1", User: types.Identity{Name: "ann", Color: "#f00"}},
		}))

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg protocol.ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		require.NotNil(t, msg.InitState, "expected init-state reply to join")
		assert.Equal(t, "room-1", msg.InitState.RoomId)
	})

	t.Run("no origin", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
		require.NoError(t, err)
		conn.Close()
	})

	t.Run("disallowed origin", func(t *testing.T) {
		header := http.Header{}
		header.Set("Origin", "http://evil.example.com")
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func Test_serveWs_HubShutDown(t *testing.T) {
	hub := newTestHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Shutdown(ctx))

	app := newTestApp(t, hub, nil)
	srv := httptest.NewServer(app.srv.Handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err, "expected the upgrade itself to succeed")
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater), "expected try-again-later close, got %v", err)
}
