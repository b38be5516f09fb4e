package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quiz-battle/internal/db/repository"
	httperrors "github.com/gokatarajesh/quiz-battle/pkg/http/errors"
)

type stubSnapshots struct {
	snap repository.Snapshot
	err  error
}

func (s stubSnapshots) Latest(context.Context, string) (repository.Snapshot, error) {
	return s.snap, s.err
}

type stubWinners struct {
	winners []repository.Winner
	err     error
}

func (s stubWinners) TopWinners(context.Context, int) ([]repository.Winner, error) {
	return s.winners, s.err
}

func get(t *testing.T, h *HTTPHandler, target string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.HandleGet(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body response
	if rec.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	}
	return rec, body
}

func TestHandleGet_FromRedis(t *testing.T) {
	top := &stubTop{entries: map[string][]Entry{
		WindowWeekly: {{UserID: "a", Score: 300}, {UserID: "b", Score: 200}, {UserID: "c", Score: 100}},
	}}
	h := NewHTTPHandler(top, nil, nil, zerolog.Nop())

	rec, body := get(t, h, "/v1/battle/leaderboard?window=weekly&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "redis", body.Source)
	assert.Equal(t, WindowWeekly, body.Window)
	require.Len(t, body.Top, 2)
	assert.Equal(t, 2, body.Top[1].Rank)
	assert.Equal(t, "b", body.Top[1].UserID)
}

func TestHandleGet_SnapshotFallback(t *testing.T) {
	snap := repository.Snapshot{Entries: []byte(`[{"rank":1,"user_id":"a","score":95},{"rank":2,"user_id":"b","score":10}]`)}
	h := NewHTTPHandler(&stubTop{err: errors.New("redis down")}, stubSnapshots{snap: snap}, nil, zerolog.Nop())

	rec, body := get(t, h, "/v1/battle/leaderboard?window=daily&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "snapshot", body.Source)
	require.Len(t, body.Top, 1)
	assert.Equal(t, 95, body.Top[0].Score)
}

func TestHandleGet_HistoryFallbackForAllTime(t *testing.T) {
	h := NewHTTPHandler(&stubTop{},
		stubSnapshots{err: repository.ErrSnapshotNotFound},
		stubWinners{winners: []repository.Winner{{UserID: "b", DisplayName: "Ben", Wins: 3}}},
		zerolog.Nop())

	rec, body := get(t, h, "/v1/battle/leaderboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, WindowAllTime, body.Window)
	assert.Equal(t, "history", body.Source)
	require.Len(t, body.Top, 1)
	assert.Equal(t, 3, body.Top[0].Wins)
}

func TestHandleGet_EmptyBoard(t *testing.T) {
	h := NewHTTPHandler(&stubTop{}, nil, nil, zerolog.Nop())

	rec, body := get(t, h, "/v1/battle/leaderboard?window=daily")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, body.Top)
	assert.Empty(t, body.Top)
}

func TestHandleGet_Errors(t *testing.T) {
	h := NewHTTPHandler(&stubTop{err: errors.New("redis down")}, nil, stubWinners{err: errors.New("db down")}, zerolog.Nop())

	rec, _ := get(t, h, "/v1/battle/leaderboard?window=monthly")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var errBody httperrors.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errBody))
	assert.Equal(t, httperrors.ErrCodeUnknownWindow, errBody.Error)

	rec, _ = get(t, h, "/v1/battle/leaderboard")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleGet(rec, httptest.NewRequest(http.MethodPost, "/v1/battle/leaderboard", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
