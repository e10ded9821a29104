package generichttp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSubMuxSanitize(t *testing.T) {
	cases := map[string]string{
		"":          "/",
		"/":         "/",
		"sdr":       "/sdr",
		"/sdr/":     "/sdr",
		"a/b/":      "/a/b",
		"//bladerf": "/bladerf",
	}
	for in, expected := range cases {
		if got := SubMuxSanitize(in); got != expected {
			t.Errorf("%q: expected %q got %q", in, expected, got)
		}
	}
}

func TestGetFloat(t *testing.T) {
	h := GetFloat(func() (float64, error) { return 2.5e9, nil })
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 got %d", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"f64":2500000000}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestSetFloat(t *testing.T) {
	var got float64
	h := SetFloat(func(f float64) error {
		got = f
		return nil
	})
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"f64": 915e6}`)))
	if w.Code != http.StatusOK || got != 915e6 {
		t.Errorf("expected 200 and 915e6 got %d and %v", w.Code, got)
	}

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"f64":`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for truncated json got %d", w.Code)
	}
}

func TestSetterError(t *testing.T) {
	h := SetInt(func(int) error { return errors.New("nope") })
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"int": 1}`)))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 got %d", w.Code)
	}
}

func TestGetBoolAndString(t *testing.T) {
	w := httptest.NewRecorder()
	GetBool(func() (bool, error) { return true, nil })(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if body := strings.TrimSpace(w.Body.String()); body != `{"bool":true}` {
		t.Errorf("unexpected body %s", body)
	}
	w = httptest.NewRecorder()
	GetString(func() (string, error) { return "fpga", nil })(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if body := strings.TrimSpace(w.Body.String()); body != `{"str":"fpga"}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestGetJSON(t *testing.T) {
	w := httptest.NewRecorder()
	GetJSON(func() (interface{}, error) {
		return struct {
			A int `json:"a"`
		}{3}, nil
	})(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if body := strings.TrimSpace(w.Body.String()); body != `{"a":3}` {
		t.Errorf("unexpected body %s", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json got %s", ct)
	}
}
