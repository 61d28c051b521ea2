package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestHelpers_GetIdempotencyKey_IsReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false by default")
	}
	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key must read as absent")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatalf("non-bool replay flag must read as false")
	}
}

func newIdemRouter(lookup IdempotencyLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/activity", IdempotencyValidator(IdempotencyOptions{Source: "chat"}, lookup), func(c *gin.Context) {
		k, _ := GetIdempotencyKey(c)
		c.JSON(http.StatusOK, gin.H{"key": k, "replay": IsReplay(c), "bypass": IsRateBypass(c)})
	})
	return r
}

func TestIdempotencyValidator_NoHeader_SkipsLookup(t *testing.T) {
	called := false
	r := newIdemRouter(func(context.Context, string, string, time.Time) (bool, error) {
		called = true
		return true, nil
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/activity", nil))
	if w.Code != http.StatusOK || called {
		t.Fatalf("code=%d called=%v", w.Code, called)
	}
}

func TestIdempotencyValidator_RejectsBadKeys(t *testing.T) {
	r := newIdemRouter(nil)
	for _, key := range []string{"has space", "semi;colon", strings.Repeat("a", 201)} {
		req := httptest.NewRequest(http.MethodPost, "/activity", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("key %q: status = %d", key, w.Code)
		}
		var body map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body["code"] != "bad_idempotency_key" {
			t.Fatalf("key %q: body = %v", key, body)
		}
	}
}

func TestIdempotencyValidator_ReplayMarksBypass(t *testing.T) {
	var gotSource, gotKey string
	r := newIdemRouter(func(_ context.Context, source, key string, now time.Time) (bool, error) {
		gotSource, gotKey = source, key
		return key == "evt-seen", nil
	})

	for _, tc := range []struct {
		key    string
		replay bool
	}{{"evt-seen", true}, {"evt-new", false}} {
		req := httptest.NewRequest(http.MethodPost, "/activity", nil)
		req.Header.Set(HeaderIdempotencyKey, tc.key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		var body struct {
			Key    string `json:"key"`
			Replay bool   `json:"replay"`
			Bypass bool   `json:"bypass"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Key != tc.key || body.Replay != tc.replay || body.Bypass != tc.replay {
			t.Fatalf("%s: body = %+v", tc.key, body)
		}
		if gotSource != "chat" || gotKey != tc.key {
			t.Fatalf("lookup got (%q,%q)", gotSource, gotKey)
		}
	}
}
