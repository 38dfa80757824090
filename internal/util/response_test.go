package util

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestStatusForKind(t *testing.T) {
	cases := map[ErrorKind]int{
		KindNotFound:          http.StatusNotFound,
		KindUnauthorized:      http.StatusUnauthorized,
		KindForbidden:         http.StatusForbidden,
		KindConflict:          http.StatusConflict,
		KindValidation:        http.StatusBadRequest,
		KindTimeLimitExceeded: http.StatusGone,
		KindTooManyRequests:   http.StatusTooManyRequests,
		KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := StatusForKind(kind); got != want {
			t.Errorf("StatusForKind(%s) = %d, want %d", kind, got, want)
		}
	}
}

func handle(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	HandleError(c, err)
	return w
}

func TestHandleError(t *testing.T) {
	w := handle(NewConflictError("Attempt has already been submitted").With("status", "COMPLETED"))
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Kind ErrorKind              `json:"kind"`
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Kind != KindConflict || resp.Data["status"] != "COMPLETED" {
		t.Fatalf("response = %+v", resp)
	}

	w = handle(NewInternalError("load attempt", errors.New("dial tcp: connection refused")))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if body := w.Body.String(); strings.Contains(body, "connection refused") {
		t.Fatalf("internal error leaked: %s", body)
	}

	if w := handle(errors.New("plain")); w.Code != http.StatusInternalServerError {
		t.Fatalf("plain error status = %d", w.Code)
	}
}

func TestKindOf(t *testing.T) {
	wrapped := errors.Join(errors.New("ctx"), NewTimeLimitExceededError("late"))
	if !IsKind(wrapped, KindTimeLimitExceeded) {
		t.Fatalf("KindOf(wrapped) = %s", KindOf(wrapped))
	}
	if IsKind(nil, KindInternal) {
		t.Fatal("nil error has no kind")
	}
}

func TestShortcutErrorsCarryKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		write  func(c *gin.Context)
		status int
		kind   ErrorKind
	}{
		{"unauthorized", Unauthorized, http.StatusUnauthorized, KindUnauthorized},
		{"forbidden", Forbidden, http.StatusForbidden, KindForbidden},
		{"internal", InternalServerError, http.StatusInternalServerError, KindInternal},
		{"bad request", func(c *gin.Context) { BadRequest(c, "bad") }, http.StatusBadRequest, KindValidation},
		{"unwrapped error", func(c *gin.Context) { HandleError(c, errors.New("boom")) }, http.StatusInternalServerError, KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
			tc.write(c)

			var resp Response
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if w.Code != tc.status || resp.Kind != tc.kind {
				t.Fatalf("status %d kind %q, want %d %q", w.Code, resp.Kind, tc.status, tc.kind)
			}
		})
	}
}
