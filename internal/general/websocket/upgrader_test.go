package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"courier-track/internal/domain/user"
	"courier-track/internal/general/jwt"
	"courier-track/internal/general/logger"
)

func dialCustomer(t *testing.T, srvURL, customerID, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srvURL, "http") + "/ws/customer/" + customerID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	frame, err := json.Marshal(jwt.ClientAuthMessage{Type: "auth", Token: "Bearer " + token})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(reply), "auth_success")

	return conn
}

// A completed connection must not leave its ping goroutine behind.
func TestConnectCustomerReleasesGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := logger.New("websocket-test")
	mgr := jwt.NewManager("test-secret", time.Hour)
	ws := NewWebSocket(log, mgr)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/customer/{customer_id}", ws.ConnectCustomer)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	token, _, err := mgr.IssueUserToken("cust-1", user.RoleCustomer)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		conn := dialCustomer(t, srv.URL, "cust-1", token)
		require.True(t, ws.IsCustomerConnected("cust-1"))

		// clean close, code 1000
		deadline := time.Now().Add(time.Second)
		require.NoError(t, conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), deadline))
		_, _, _ = conn.ReadMessage() // close ack (or error), either way the peer is done
		require.NoError(t, conn.Close())

		require.Eventually(t, func() bool {
			return !ws.IsCustomerConnected("cust-1")
		}, 2*time.Second, 10*time.Millisecond, "server handler should unregister the connection")
	}
}

func TestConnectCustomerPingPong(t *testing.T) {
	log := logger.New("websocket-test")
	mgr := jwt.NewManager("test-secret", time.Hour)
	ws := NewWebSocket(log, mgr)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/customer/{customer_id}", ws.ConnectCustomer)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	token, _, err := mgr.IssueUserToken("cust-2", user.RoleCustomer)
	require.NoError(t, err)

	conn := dialCustomer(t, srv.URL, "cust-2", token)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"pong"}`, string(reply))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"nope"}`)))
	_, reply, err = conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(reply), "unknown message type")
}

func TestConnectCustomerRejectsWrongSubject(t *testing.T) {
	log := logger.New("websocket-test")
	mgr := jwt.NewManager("test-secret", time.Hour)
	ws := NewWebSocket(log, mgr)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/customer/{customer_id}", ws.ConnectCustomer)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	token, _, err := mgr.IssueUserToken("cust-3", user.RoleCustomer)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/customer/somebody-else"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	frame, err := json.Marshal(jwt.ClientAuthMessage{Type: "auth", Token: "Bearer " + token})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(reply), "auth_error")
	require.False(t, ws.IsCustomerConnected("cust-3"))
}
