package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/izikdepth/MemeBot/internal/domain"
	"github.com/izikdepth/MemeBot/internal/http/middleware"
	"github.com/izikdepth/MemeBot/internal/repo"
	"github.com/izikdepth/MemeBot/internal/services"
)

// ---------- stubs ----------

type stubActivity struct {
	got services.ActivityEvent
	out *services.Outcome
	err error
}

func (s *stubActivity) HandleEvent(_ context.Context, ev services.ActivityEvent) (*services.Outcome, error) {
	s.got = ev
	return s.out, s.err
}

type stubClaims struct {
	got services.ClaimRequest
	res *services.ClaimResult
	err error
}

func (s *stubClaims) Submit(_ context.Context, req services.ClaimRequest) (*services.ClaimResult, error) {
	s.got = req
	return s.res, s.err
}

type stubGames struct {
	calls []string
	view  *services.SessionView
	err   error
}

func (s *stubGames) record(call string) (*services.SessionView, error) {
	s.calls = append(s.calls, call)
	return s.view, s.err
}

func (s *stubGames) StartConnect4(_ context.Context, id, a, b string) (*services.SessionView, error) {
	return s.record("start-c4:" + id + ":" + a + ":" + b)
}

func (s *stubGames) StartTicTacToe(_ context.Context, id, a, b string) (*services.SessionView, error) {
	return s.record("start-ttt:" + id + ":" + a + ":" + b)
}

func (s *stubGames) MoveConnect4(_ context.Context, id, user string, col int) (*services.SessionView, error) {
	return s.record("c4:" + id + ":" + user + ":" + strconv.Itoa(col))
}

func (s *stubGames) MoveTicTacToe(_ context.Context, id, user string, row, col int) (*services.SessionView, error) {
	return s.record("ttt:" + id + ":" + user + ":" + strconv.Itoa(row) + "," + strconv.Itoa(col))
}

func (s *stubGames) Forfeit(_ context.Context, id, user string) (*services.SessionView, error) {
	return s.record("forfeit:" + id + ":" + user)
}

func (s *stubGames) Get(id string) (*services.SessionView, error) {
	return s.record("get:" + id)
}

type stubQuery struct {
	user    *services.UserSummary
	winners []domain.Winner
	top     []domain.User
	day     *repo.DaySummary
	err     error

	gotDate  string
	gotLimit int
}

func (s *stubQuery) User(context.Context, string) (*services.UserSummary, error) {
	return s.user, s.err
}

func (s *stubQuery) Leaderboard(_ context.Context, date string, limit int) ([]domain.Winner, error) {
	s.gotDate, s.gotLimit = date, limit
	return s.winners, s.err
}

func (s *stubQuery) TopBalances(_ context.Context, limit int) ([]domain.User, error) {
	s.gotLimit = limit
	return s.top, s.err
}

func (s *stubQuery) Daily(_ context.Context, date string) (*repo.DaySummary, error) {
	s.gotDate = date
	return s.day, s.err
}

type stubRefresh struct {
	rep    *services.CycleReport
	err    error
	n      int
	ctxErr error
}

func (s *stubRefresh) RunCycle(ctx context.Context) (*services.CycleReport, error) {
	s.n++
	s.ctxErr = ctx.Err()
	return s.rep, s.err
}

type stubReminder struct {
	n   int
	err error
}

func (s *stubReminder) Run(context.Context) (int, error) { return s.n, s.err }

// ---------- helpers ----------

// newTestRouter mounts only the routes under test, with request ids so the
// error envelope is populated.
func newTestRouter(mount func(r *gin.Engine)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	mount(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error envelope: %v (body=%s)", err, w.Body.String())
	}
	if er.RequestID == "" {
		t.Fatalf("error envelope missing request_id: %s", w.Body.String())
	}
	return er
}
