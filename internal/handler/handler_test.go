package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NaviWasm/service-mapview/internal/animation"
	"github.com/NaviWasm/service-mapview/internal/application"
	"github.com/NaviWasm/service-mapview/internal/domain/geo"
	"github.com/NaviWasm/service-mapview/internal/domain/view"
	"github.com/NaviWasm/service-mapview/internal/events"
	"github.com/NaviWasm/service-mapview/internal/middleware"
	"github.com/NaviWasm/service-mapview/internal/overlay"
	"github.com/NaviWasm/service-mapview/internal/placement"
	"github.com/NaviWasm/service-mapview/internal/repository"
	"github.com/NaviWasm/service-mapview/internal/routing"
	"github.com/NaviWasm/service-mapview/internal/surface"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// lateRouter forwards to a client created once the test server URL is known.
type lateRouter struct {
	client *routing.Client
}

func (r *lateRouter) RequestRoute(ctx context.Context, start, end geo.Coordinate) (*routing.Result, error) {
	return r.client.RequestRoute(ctx, start, end)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	t       *testing.T
	srv     *httptest.Server
	service *application.ViewService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	router := &lateRouter{}

	service := application.NewViewService(
		repository.NewMemoryViewRepository(),
		router,
		events.NopPublisher{},
		application.ViewServiceConfig{MaxViews: 5, AnimationDuration: time.Second, Overlay: overlay.DefaultOptions()},
		log,
		application.WithDisplayFactory(func() animation.Display { return animation.NewManualDisplay() }),
	)
	navigation := application.NewNavigationService(service.Metrics(), log)

	engine := gin.New()
	engine.Use(middleware.RecoveryMiddleware(log))
	engine.Use(middleware.RequestIDMiddleware())
	NewSystemHandler(service, "service-mapview").RegisterRoutes(&engine.RouterGroup)
	NewViewHandler(service).RegisterRoutes(&engine.RouterGroup)
	NewStreamHandler(service, nil, log).RegisterRoutes(&engine.RouterGroup)
	NewNavigationHandler(navigation).RegisterRoutes(&engine.RouterGroup)

	srv := httptest.NewServer(engine)
	client, err := routing.NewClient(routing.Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	router.client = client

	t.Cleanup(func() {
		_ = service.Shutdown(context.Background())
		srv.Close()
	})
	return &testServer{t: t, srv: srv, service: service}
}

func (s *testServer) do(method, path, body string) (int, envelope) {
	s.t.Helper()
	req, err := http.NewRequest(method, s.srv.URL+path, bytes.NewReader([]byte(body)))
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func (s *testServer) createView() view.State {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/views", "")
	require.Equal(s.t, http.StatusCreated, code)
	var st view.State
	require.NoError(s.t, json.Unmarshal(env.Data, &st))
	return st
}

// tryState fetches a view without failing the test, for polling.
func (s *testServer) tryState(id string) (view.State, bool) {
	resp, err := s.srv.Client().Get(s.srv.URL + "/api/v1/views/" + id)
	if err != nil {
		return view.State{}, false
	}
	defer resp.Body.Close()
	var env envelope
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&env) != nil {
		return view.State{}, false
	}
	var st view.State
	if json.Unmarshal(env.Data, &st) != nil {
		return view.State{}, false
	}
	return st, true
}

func decodeState(t *testing.T, env envelope) view.State {
	t.Helper()
	var st view.State
	require.NoError(t, json.Unmarshal(env.Data, &st))
	return st
}

func TestViewHandler_CreateAndGet(t *testing.T) {
	s := newTestServer(t)

	created := s.createView()
	assert.Equal(t, placement.StatusIdle.String(), created.Status)
	assert.Equal(t, view.OutcomeIdle, created.Outcome.Status)

	code, env := s.do(http.MethodGet, "/api/v1/views/"+created.ID.String(), "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, created.ID, decodeState(t, env).ID)

	code, _ = s.do(http.MethodPost, "/api/v1/views", `{"animation_duration_ms":250}`)
	assert.Equal(t, http.StatusCreated, code)

	code, env = s.do(http.MethodPost, "/api/v1/views", `{"animation_duration_ms":-5}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)

	code, env = s.do(http.MethodGet, "/api/v1/views", "")
	assert.Equal(t, http.StatusOK, code)
	var all []view.State
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Len(t, all, 2)
}

func TestViewHandler_BadAndUnknownIDs(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodGet, "/api/v1/views/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid view ID", env.Error)

	code, _ = s.do(http.MethodGet, "/api/v1/views/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodDelete, "/api/v1/views/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestViewHandler_ClickValidation(t *testing.T) {
	s := newTestServer(t)
	id := s.createView().ID.String()

	code, env := s.do(http.MethodPost, "/api/v1/views/"+id+"/clicks", `{"lat":95,"lng":0}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
	assert.Equal(t, placement.StatusIdle.String(), decodeState(t, env).Status)

	code, _ = s.do(http.MethodPost, "/api/v1/views/"+id+"/clicks", `{"lat":10}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodPost, "/api/v1/views/"+id+"/clicks", `{"lat":0,"lng":0}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, placement.StatusAwaitingEnd.String(), decodeState(t, env).Status)
}

func TestViewHandler_RouteThroughStub(t *testing.T) {
	s := newTestServer(t)
	id := s.createView().ID.String()

	code, _ := s.do(http.MethodPost, "/api/v1/views/"+id+"/clicks", `{"lat":40.7128,"lng":-74.0060}`)
	require.Equal(t, http.StatusOK, code)
	code, env := s.do(http.MethodPost, "/api/v1/views/"+id+"/clicks", `{"lat":34.0522,"lng":-118.2437}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, placement.StatusComplete.String(), decodeState(t, env).Status)

	var st view.State
	require.Eventually(t, func() bool {
		got, ok := s.tryState(id)
		st = got
		return ok && got.Outcome.Status == view.OutcomeRouted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, st.OverlayVertices)
	assert.Equal(t, "server", st.Outcome.TimingSource)
	assert.InDelta(t, 3935.7, st.Outcome.DistanceKm, 1.0)

	code, env = s.do(http.MethodPost, "/api/v1/views/"+id+"/reset", "")
	assert.Equal(t, http.StatusOK, code)
	st = decodeState(t, env)
	assert.Equal(t, placement.StatusIdle.String(), st.Status)
	assert.Zero(t, st.OverlayVertices)

	code, env = s.do(http.MethodGet, "/api/v1/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	var m application.MetricsDTO
	require.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Equal(t, int64(1), m.RoutesCalculated)
	assert.Equal(t, int64(1), m.RouteCalculationCount)
	assert.Equal(t, 1, m.ActiveViews)
}

func TestViewHandler_Delete(t *testing.T) {
	s := newTestServer(t)
	id := s.createView().ID.String()

	code, _ := s.do(http.MethodDelete, "/api/v1/views/"+id, "")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = s.do(http.MethodGet, "/api/v1/views/"+id, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestNavigationHandler(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.srv.Client().Post(s.srv.URL+routing.DefaultPath, "application/json",
		strings.NewReader(`{"start":{"lat":1,"lng":2},"end":{"lat":3,"lng":4}}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body routing.RouteResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []routing.LatLng{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}}, body.Path)

	code, env := s.do(http.MethodPost, routing.DefaultPath, `{"start":{"lat":100,"lng":2},"end":{"lat":3,"lng":4}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
}

func TestSystemHandler_Health(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.srv.Client().Get(s.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "service-mapview", body["service"])
}

func TestStreamHandler(t *testing.T) {
	s := newTestServer(t)
	id := s.createView().ID.String()

	wsURL := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/v1/views/" + id + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg serverMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, msgSnapshot, msg.Type)
	require.NotNil(t, msg.Snapshot)
	assert.True(t, msg.Snapshot.Ready)
	assert.Empty(t, msg.Snapshot.Markers)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "click", "lat": 10.0, "lng": 20.0}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, msgOp, msg.Type)
	require.NotNil(t, msg.Op)
	assert.Equal(t, surface.OpMarkerAdd, msg.Op.Type)
	assert.Equal(t, surface.StyleStart, *msg.Op.Style)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "click", "lat": 200.0, "lng": 20.0}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, msgError, msg.Type)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "teleport"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, msgError, msg.Type)
	assert.Equal(t, "unknown message type", msg.Error)

	code, _ := s.do(http.MethodDelete, "/api/v1/views/"+id, "")
	require.Equal(t, http.StatusNoContent, code)

	// remaining ops drain, then the server closes the socket
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
			break
		}
	}
}

func TestStreamHandler_UnknownView(t *testing.T) {
	s := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/v1/views/" + uuid.NewString() + "/stream"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
