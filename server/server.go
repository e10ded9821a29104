// Package server contains misc server utilities.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi"
)

// FloatT is a struct with a single float64 field, "f64"
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a struct with a single int field, "int"
type IntT struct {
	Int int `json:"int"`
}

// UintT is a struct with a single uint64 field, "u64"
type UintT struct {
	U64 uint64 `json:"u64"`
}

// StrT is a struct with a single string field, "str"
type StrT struct {
	Str string `json:"str"`
}

// BoolT is a struct with a single bool field, "bool"
type BoolT struct {
	Bool bool `json:"bool"`
}

// HumanPayload holds one of several basic types, selected by T
type HumanPayload struct {
	// Float holds a float64
	Float float64

	// Int holds an int
	Int int

	// Uint holds a uint64
	Uint uint64

	// String holds a string
	String string

	// Bool holds a bool
	Bool bool

	// T is the type of the payload
	T types.BasicKind
}

// EncodeAndRespond writes the payload as JSON, wrapped in the matching *T type
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	var v interface{}
	switch hp.T {
	case types.Float64:
		v = FloatT{F64: hp.Float}
	case types.Int:
		v = IntT{Int: hp.Int}
	case types.Uint64:
		v = UintT{U64: hp.Uint}
	case types.String:
		v = StrT{Str: hp.String}
	case types.Bool:
		v = BoolT{Bool: hp.Bool}
	default:
		fstr := fmt.Sprintf("unsupported payload type %v", hp.T)
		http.Error(w, fstr, http.StatusInternalServerError)
		return
	}
	RespondJSON(w, v)
}

// RespondJSON encodes v as JSON with status 200
func RespondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		fstr := fmt.Sprintf("error encoding data to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// Route is a method and path pair, e.g. {"GET", "/frequency/rx"}
type Route struct {
	Method string
	Path   string
}

// Get is shorthand for a GET route
func Get(path string) Route {
	return Route{Method: http.MethodGet, Path: path}
}

// Post is shorthand for a POST route
func Post(path string) Route {
	return Route{Method: http.MethodPost, Path: path}
}

// String returns "METHOD path"
func (r Route) String() string {
	return r.Method + " " + r.Path
}

// RouteTable maps routes to handlers
type RouteTable map[Route]http.HandlerFunc

// Endpoints lists the routes in a RouteTable, sorted by path then method
func (rt RouteTable) Endpoints() []string {
	keys := make([]Route, 0, len(rt))
	for k := range rt {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Path == keys[j].Path {
			return keys[i].Method < keys[j].Method
		}
		return keys[i].Path < keys[j].Path
	})
	routes := make([]string, len(keys))
	for i, k := range keys {
		routes[i] = k.String()
	}
	return routes
}

// Bind attaches every route in the table to r
func (rt RouteTable) Bind(r chi.Router) {
	for k, f := range rt {
		path := k.Path
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		r.MethodFunc(k.Method, path, f)
	}
}

// HTTPer is something with a RouteTable
type HTTPer interface {
	RT() RouteTable
}
