package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/izikdepth/MemeBot/internal/domain"
	"github.com/izikdepth/MemeBot/internal/repo"
	"github.com/izikdepth/MemeBot/internal/services"
)

func queryRouter(svc *stubQuery) *gin.Engine {
	h := New(Services{Query: svc})
	return newTestRouter(func(r *gin.Engine) {
		r.GET("/users/:id", h.GetUser)
		r.GET("/leaderboard", h.Leaderboard)
		r.GET("/daily/:date", h.DailySummary)
	})
}

func TestGetUser(t *testing.T) {
	svc := &stubQuery{user: &services.UserSummary{User: &domain.User{ID: "u1", Points: 40}, Today: 10, Winner: true}}
	w := doJSON(t, queryRouter(svc), http.MethodGet, "/users/u1", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var got services.UserSummary
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.User.ID != "u1" || got.Today != 10 || !got.Winner {
		t.Fatalf("summary = %+v", got)
	}

	w = doJSON(t, queryRouter(&stubQuery{err: services.ErrUserNotFound}), http.MethodGet, "/users/nobody", nil, nil)
	if w.Code != http.StatusNotFound || decodeError(t, w).Code != ErrCodeNotFound {
		t.Fatalf("unknown user: status=%d", w.Code)
	}
}

func TestLeaderboard_DailyAndAllTime(t *testing.T) {
	svc := &stubQuery{
		winners: []domain.Winner{{Date: "2025-03-14", UserID: "u1", PointsEarned: 30}},
		top:     []domain.User{{ID: "u9", Points: 900}},
	}
	r := queryRouter(svc)

	w := doJSON(t, r, http.MethodGet, "/leaderboard?date=2025-03-14&limit=500", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if svc.gotDate != "2025-03-14" || svc.gotLimit != maxLeaderboardLimit {
		t.Fatalf("date=%q limit=%d", svc.gotDate, svc.gotLimit)
	}
	var daily struct {
		Date    string          `json:"date"`
		Winners []domain.Winner `json:"winners"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &daily); err != nil {
		t.Fatal(err)
	}
	if daily.Date != "2025-03-14" || len(daily.Winners) != 1 || daily.Winners[0].PointsEarned != 30 {
		t.Fatalf("daily = %+v", daily)
	}

	w = doJSON(t, r, http.MethodGet, "/leaderboard?all_time=true", nil, nil)
	var all struct {
		AllTime bool          `json:"all_time"`
		Users   []domain.User `json:"users"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &all); err != nil {
		t.Fatal(err)
	}
	if !all.AllTime || len(all.Users) != 1 || svc.gotLimit != defaultLeaderboardLimit {
		t.Fatalf("all time = %+v limit=%d", all, svc.gotLimit)
	}
}

func TestLeaderboard_DefaultDateIsToday(t *testing.T) {
	svc := &stubQuery{}
	w := doJSON(t, queryRouter(svc), http.MethodGet, "/leaderboard", nil, nil)
	if w.Code != http.StatusOK || svc.gotDate != "" {
		t.Fatalf("status=%d date=%q", w.Code, svc.gotDate)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["date"] != "today" {
		t.Fatalf("body = %v", body)
	}
}

func TestQueryErrors(t *testing.T) {
	cases := []struct {
		path   string
		err    error
		status int
		code   string
	}{
		{"/leaderboard?date=14-03-2025", services.ErrInvalidDate, http.StatusBadRequest, ErrCodeInvalidDate},
		{"/daily/yesterday", services.ErrInvalidDate, http.StatusBadRequest, ErrCodeInvalidDate},
		{"/leaderboard", errors.New("db down"), http.StatusInternalServerError, ErrCodeLedger},
		{"/leaderboard?all_time=1", errors.New("db down"), http.StatusInternalServerError, ErrCodeLedger},
		{"/daily/2025-03-14", errors.New("db down"), http.StatusInternalServerError, ErrCodeLedger},
		{"/users/u1", errors.New("db down"), http.StatusInternalServerError, ErrCodeLedger},
	}
	for _, tc := range cases {
		w := doJSON(t, queryRouter(&stubQuery{err: tc.err}), http.MethodGet, tc.path, nil, nil)
		if w.Code != tc.status {
			t.Fatalf("%s: status=%d want %d", tc.path, w.Code, tc.status)
		}
		if er := decodeError(t, w); er.Code != tc.code {
			t.Fatalf("%s: code=%q want %q", tc.path, er.Code, tc.code)
		}
	}
}

func TestDailySummary(t *testing.T) {
	svc := &stubQuery{day: &repo.DaySummary{Date: "2025-03-14", Totals: map[string]int64{"chat": 120}, Earners: 3}}
	w := doJSON(t, queryRouter(svc), http.MethodGet, "/daily/today", nil, nil)
	if w.Code != http.StatusOK || svc.gotDate != "today" {
		t.Fatalf("status=%d date=%q", w.Code, svc.gotDate)
	}
	var got repo.DaySummary
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Totals["chat"] != 120 || got.Earners != 3 {
		t.Fatalf("summary = %+v", got)
	}
}
