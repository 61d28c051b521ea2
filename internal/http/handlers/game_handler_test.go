package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/izikdepth/MemeBot/internal/games"
	"github.com/izikdepth/MemeBot/internal/games/connect4"
	"github.com/izikdepth/MemeBot/internal/games/tictactoe"
	"github.com/izikdepth/MemeBot/internal/services"
)

func gameRouter(svc *stubGames) *gin.Engine {
	h := New(Services{Games: svc})
	return newTestRouter(func(r *gin.Engine) {
		r.POST("/games/connect4", h.StartConnect4)
		r.POST("/games/connect4/:id/moves", h.MoveConnect4)
		r.POST("/games/tictactoe", h.StartTicTacToe)
		r.POST("/games/tictactoe/:id/moves", h.MoveTicTacToe)
		r.POST("/games/:id/forfeit", h.ForfeitGame)
		r.GET("/games/:id", h.GetGame)
	})
}

func TestGameRoutes_DispatchToService(t *testing.T) {
	svc := &stubGames{view: &services.SessionView{ID: "g1", Kind: services.GameConnect4, State: "in_progress"}}
	r := gameRouter(svc)

	steps := []struct {
		method, path string
		body         any
		status       int
	}{
		{http.MethodPost, "/games/connect4", map[string]any{"id": "g1", "challenger": "a", "opponent": "b"}, http.StatusCreated},
		{http.MethodPost, "/games/connect4/g1/moves", map[string]any{"user_id": "a", "column": 0}, http.StatusOK},
		{http.MethodPost, "/games/tictactoe", map[string]any{"challenger": "a", "opponent": "b"}, http.StatusCreated},
		{http.MethodPost, "/games/t1/moves", nil, http.StatusNotFound},
		{http.MethodPost, "/games/tictactoe/t1/moves", map[string]any{"user_id": "b", "row": 2, "col": 0}, http.StatusOK},
		{http.MethodPost, "/games/g1/forfeit", map[string]any{"user_id": "b"}, http.StatusOK},
		{http.MethodGet, "/games/g1", nil, http.StatusOK},
	}
	for _, s := range steps {
		if w := doJSON(t, r, s.method, s.path, s.body, nil); w.Code != s.status {
			t.Fatalf("%s %s: status=%d want %d body=%s", s.method, s.path, w.Code, s.status, w.Body.String())
		}
	}

	want := []string{
		"start-c4:g1:a:b",
		"c4:g1:a:0",
		"start-ttt::a:b",
		"ttt:t1:b:2,0",
		"forfeit:g1:b",
		"get:g1",
	}
	if len(svc.calls) != len(want) {
		t.Fatalf("calls = %v", svc.calls)
	}
	for i := range want {
		if svc.calls[i] != want[i] {
			t.Fatalf("call %d = %q want %q", i, svc.calls[i], want[i])
		}
	}
}

func TestGameRoutes_ViewBody(t *testing.T) {
	svc := &stubGames{view: &services.SessionView{
		ID: "g1", Kind: services.GameTicTacToe, Players: [2]string{"a", "b"},
		State: "player_win", Winner: "a",
		Award: &services.AwardResult{UserID: "a", Granted: 50},
	}}
	w := doJSON(t, gameRouter(svc), http.MethodPost, "/games/tictactoe/g1/moves", map[string]any{"user_id": "a", "row": 0, "col": 2}, nil)

	var v services.SessionView
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatal(err)
	}
	if v.Winner != "a" || v.Award == nil || v.Award.Granted != 50 {
		t.Fatalf("view = %+v", v)
	}
}

func TestGameRoutes_MissingCoordinates(t *testing.T) {
	svc := &stubGames{}
	r := gameRouter(svc)
	for path, body := range map[string]any{
		"/games/connect4/g1/moves":  map[string]any{"user_id": "a"},
		"/games/tictactoe/g1/moves": map[string]any{"user_id": "a", "row": 1},
		"/games/connect4":           map[string]any{"challenger": "a"},
		"/games/g1/forfeit":         map[string]any{},
	} {
		w := doJSON(t, r, http.MethodPost, path, body, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", path, w.Code)
		}
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service must not be called: %v", svc.calls)
	}
}

func TestGameRoutes_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrSessionNotFound, http.StatusNotFound, ErrCodeGameNotFound},
		{services.ErrSessionExists, http.StatusConflict, ErrCodeGameExists},
		{services.ErrNotAPlayer, http.StatusForbidden, ErrCodeNotAPlayer},
		{services.ErrNotYourTurn, http.StatusConflict, ErrCodeNotYourTurn},
		{services.ErrGameTimedOut, http.StatusConflict, ErrCodeGameTimedOut},
		{games.ErrGameOver, http.StatusConflict, ErrCodeGameOver},
		{services.ErrSamePlayer, http.StatusBadRequest, ErrCodeBadRequest},
		{services.ErrCooldown, http.StatusTooManyRequests, ErrCodeCooldown},
		{connect4.ErrColumnFull, http.StatusConflict, ErrCodeIllegalMove},
		{tictactoe.ErrCellTaken, http.StatusConflict, ErrCodeIllegalMove},
		{connect4.ErrInvalidColumn, http.StatusBadRequest, ErrCodeIllegalMove},
		{tictactoe.ErrInvalidCell, http.StatusBadRequest, ErrCodeIllegalMove},
		{errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := doJSON(t, gameRouter(&stubGames{err: tc.err}), http.MethodPost, "/games/connect4/g1/moves",
				map[string]any{"user_id": "a", "column": 3}, nil)
			if w.Code != tc.status {
				t.Fatalf("status=%d want %d", w.Code, tc.status)
			}
			if er := decodeError(t, w); er.Code != tc.code {
				t.Fatalf("code=%q want %q", er.Code, tc.code)
			}
		})
	}
}
