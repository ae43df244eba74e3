package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chemformula/internal/auth"
	"chemformula/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	policy := auth.NewPolicy([]auth.Role{auth.RoleAdmin})
	authorize := func(_ context.Context, token string) (*auth.Principal, error) {
		switch token {
		case "manager":
			return &auth.Principal{UserID: 1, Role: auth.RoleManager}, nil
		case "viewer":
			return &auth.Principal{UserID: 2, Role: auth.RoleViewer}, nil
		}
		return nil, errors.New("invalid token")
	}
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ServeWs(hub, c, authorize, policy) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestPublishReachesApprovers(t *testing.T) {
	hub := NewHub(logger.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	srv := newTestServer(t, hub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=manager"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish("approval.pending", map[string]interface{}{"entity_type": "Resource", "entity_id": 3})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "approval.pending", ev.Event)
	assert.Equal(t, "Resource", ev.Data["entity_type"])
	assert.Equal(t, float64(3), ev.Data["entity_id"])

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWsRejectsUnauthorised(t *testing.T) {
	hub := NewHub(logger.NewNop(), nil)
	srv := newTestServer(t, hub)

	cases := map[string]int{
		"":               http.StatusUnauthorized,
		"?token=garbage": http.StatusUnauthorized,
		"?token=viewer":  http.StatusForbidden,
	}
	for query, status := range cases {
		resp, err := http.Get(srv.URL + "/ws" + query)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, status, resp.StatusCode, "query %q", query)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(logger.NewNop(), nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.Publish("approval.decided", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with no hub running")
	}
	assert.Len(t, hub.broadcast, broadcastBuffer)
}

func TestRunClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub(logger.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	srv := newTestServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?token=manager", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-stopped
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
