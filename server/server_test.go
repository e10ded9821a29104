package server

import (
	"go/types"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
)

func TestEndpointsSorted(t *testing.T) {
	nop := func(http.ResponseWriter, *http.Request) {}
	rt := RouteTable{
		Post("frequency/tx"): nop,
		Get("frequency/tx"):  nop,
		Get("fpga-version"):  nop,
	}
	got := strings.Join(rt.Endpoints(), ",")
	expected := "GET fpga-version,GET frequency/tx,POST frequency/tx"
	if got != expected {
		t.Errorf("expected %s got %s", expected, got)
	}
}

func TestBind(t *testing.T) {
	rt := RouteTable{
		Get("ping"): func(w http.ResponseWriter, r *http.Request) {
			HumanPayload{T: types.String, String: "pong"}.EncodeAndRespond(w, r)
		},
	}
	r := chi.NewRouter()
	rt.Bind(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if body := strings.TrimSpace(w.Body.String()); body != `{"str":"pong"}` {
		t.Errorf("unexpected body %s", body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ping", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 got %d", w.Code)
	}
}

func TestHumanPayloadKinds(t *testing.T) {
	cases := []struct {
		hp       HumanPayload
		expected string
	}{
		{HumanPayload{T: types.Float64, Float: 1.5}, `{"f64":1.5}`},
		{HumanPayload{T: types.Int, Int: -3}, `{"int":-3}`},
		{HumanPayload{T: types.Uint64, Uint: 1 << 40}, `{"u64":1099511627776}`},
		{HumanPayload{T: types.Bool, Bool: true}, `{"bool":true}`},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		c.hp.EncodeAndRespond(w, nil)
		if body := strings.TrimSpace(w.Body.String()); body != c.expected {
			t.Errorf("expected %s got %s", c.expected, body)
		}
	}
	w := httptest.NewRecorder()
	HumanPayload{T: types.Complex128}.EncodeAndRespond(w, nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for unsupported kind got %d", w.Code)
	}
}
