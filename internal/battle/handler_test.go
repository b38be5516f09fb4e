package battle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quiz-battle/internal/auth"
	"github.com/gokatarajesh/quiz-battle/internal/auth/jwt"
	"github.com/gokatarajesh/quiz-battle/internal/question"
	httperrors "github.com/gokatarajesh/quiz-battle/pkg/http/errors"
	"github.com/gokatarajesh/quiz-battle/pkg/http/ws"
)

// stubValidator accepts "tok-<user id>".
type stubValidator struct{}

func (stubValidator) ValidateToken(_ context.Context, token string) (*jwt.Claims, error) {
	userID, ok := strings.CutPrefix(token, "tok-")
	if !ok || userID == "" {
		return nil, jwt.ErrInvalidToken
	}
	return &jwt.Claims{
		UserID:    userID,
		TokenType: jwt.TokenTypeBattle,
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Unix(1_900_000_000, 0)),
		},
	}, nil
}

func (v stubValidator) RefreshFor(ctx context.Context, userID, token string) (*jwt.Claims, error) {
	claims, err := v.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims.UserID != userID {
		return nil, auth.ErrTokenUserMismatch
	}
	return claims, nil
}

func newGatewayServer(t *testing.T, opts GatewayOptions) (*httptest.Server, *harness) {
	t.Helper()
	h := newHarness(t, map[string][]question.Item{"N5": makeItems(2)})
	gw := NewGateway(h.orch, ws.NewHub(zerolog.Nop()), stubValidator{},
		&websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}, opts, zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(gw.HandleWebSocket))
	t.Cleanup(srv.Close)
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	connected := readUntil(t, conn, ws.TypeConnected)
	var p ws.ConnectedPayload
	require.NoError(t, json.Unmarshal(connected.Payload, &p))
	require.Equal(t, strings.TrimPrefix(token, "tok-"), p.UserID)
	return conn
}

// readUntil skips frames until one of msgType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg ws.Message
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", msgType)
		if msg.Type == msgType {
			return msg
		}
	}
}

func readError(t *testing.T, conn *websocket.Conn) ws.ErrorPayload {
	t.Helper()
	var p ws.ErrorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, ws.TypeError).Payload, &p))
	return p
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ws.NewMessage(msgType, payload)))
}

func TestHandleWebSocket_RejectsBadTokens(t *testing.T) {
	srv, _ := newGatewayServer(t, GatewayOptions{})

	for name, tc := range map[string]struct {
		query string
		code  string
	}{
		"missing": {query: "", code: httperrors.ErrCodeAuthenticationRequired},
		"invalid": {query: "?token=garbage", code: httperrors.ErrCodeInvalidToken},
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tc.query)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			var body httperrors.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tc.code, body.Error)
		})
	}
}

func TestGateway_ProtocolErrors(t *testing.T) {
	srv, _ := newGatewayServer(t, GatewayOptions{})
	conn := dial(t, srv, "tok-A")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, httperrors.ErrCodeInvalidPayload, readError(t, conn).Code)

	send(t, conn, "DANCE", nil)
	assert.Equal(t, httperrors.ErrCodeUnknownMessageType, readError(t, conn).Code)

	send(t, conn, ws.TypeJoinQueue, ws.JoinQueuePayload{Tier: "N0"})
	assert.Equal(t, httperrors.ErrCodeUnknownTier, readError(t, conn).Code)
}

func TestGateway_MatchAndForfeitOnClose(t *testing.T) {
	srv, h := newGatewayServer(t, GatewayOptions{})
	a := dial(t, srv, "tok-A")
	b := dial(t, srv, "tok-B")

	send(t, a, ws.TypeJoinQueue, ws.JoinQueuePayload{Tier: "N5", QuestionCount: 2})
	readUntil(t, a, ws.TypeQueueJoined)
	send(t, b, ws.TypeJoinQueue, ws.JoinQueuePayload{Tier: "N5", QuestionCount: 2})

	var found ws.MatchFoundPayload
	require.NoError(t, json.Unmarshal(readUntil(t, b, ws.TypeMatchFound).Payload, &found))
	assert.Equal(t, "A", found.Opponent.UserID)
	readUntil(t, a, ws.TypeMatchFound)

	send(t, a, ws.TypeReady, nil)
	send(t, b, ws.TypeReady, nil)
	readUntil(t, a, ws.TypeQuestion)
	readUntil(t, b, ws.TypeQuestion)

	send(t, b, ws.TypeAnswer, ws.AnswerPayload{QuestionIndex: 0, AnswerIndex: 0, ElapsedMs: 1000})
	var res ws.AnswerResultPayload
	require.NoError(t, json.Unmarshal(readUntil(t, b, ws.TypeAnswerResult).Payload, &res))
	assert.Equal(t, 95, res.ScoreGained)

	require.NoError(t, a.Close())

	var end ws.GameEndPayload
	require.NoError(t, json.Unmarshal(readUntil(t, b, ws.TypeGameEnd).Payload, &end))
	assert.Equal(t, "B", end.WinnerID)
	assert.Equal(t, ReasonForfeit, end.Reason)
	assert.Equal(t, 95, end.Player2Score)

	require.Eventually(t, func() bool { return len(h.sink.all()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestGateway_RefreshToken(t *testing.T) {
	srv, _ := newGatewayServer(t, GatewayOptions{})
	conn := dial(t, srv, "tok-A")

	send(t, conn, ws.TypeRefreshToken, ws.RefreshTokenPayload{Token: "tok-B"})
	assert.Equal(t, httperrors.ErrCodeTokenUserMismatch, readError(t, conn).Code)

	send(t, conn, ws.TypeRefreshToken, ws.RefreshTokenPayload{Token: "tok-A"})
	var p ws.TokenRefreshedPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, ws.TypeTokenRefreshed).Payload, &p))
	assert.Equal(t, int64(1_900_000_000), p.ExpiresAt)

	send(t, conn, ws.TypeRefreshToken, ws.RefreshTokenPayload{})
	assert.Equal(t, httperrors.ErrCodeInvalidPayload, readError(t, conn).Code)
}

func TestGateway_RateLimit(t *testing.T) {
	srv, _ := newGatewayServer(t, GatewayOptions{MessageRate: 0.001, MessageBurst: 1})
	conn := dial(t, srv, "tok-A")

	send(t, conn, ws.TypeLeaveQueue, nil)
	send(t, conn, ws.TypeLeaveQueue, nil)
	assert.Equal(t, httperrors.ErrCodeRateLimited, readError(t, conn).Code)
}

func TestGateway_ReconnectSupersedesOldSocket(t *testing.T) {
	srv, h := newGatewayServer(t, GatewayOptions{})
	first := dial(t, srv, "tok-A")
	send(t, first, ws.TypeJoinQueue, ws.JoinQueuePayload{Tier: "N5"})
	readUntil(t, first, ws.TypeQueueJoined)

	dial(t, srv, "tok-A")
	assert.Equal(t, UserIdle, h.orch.StateOf("A").State)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
}
