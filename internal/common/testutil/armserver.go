package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// RecordedRequest is a request received by an ArmServer.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Decode unmarshals the recorded JSON body into out, failing the test on error.
func (r RecordedRequest) Decode(t *testing.T, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(r.Body, out); err != nil {
		t.Fatalf("request body of %s %s is not valid json: %s", r.Method, r.Path, err)
	}
}

// ArmServer is a fake management API. Handlers are registered against a method and a
// path suffix; the longest matching suffix wins. Unmatched requests get an ARM-style 404.
type ArmServer struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []RecordedRequest
}

func NewArmServer(t *testing.T) *ArmServer {
	s := &ArmServer{routes: map[string]http.HandlerFunc{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *ArmServer) Handle(method, pathSuffix string, handler http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+pathSuffix] = handler
}

// JSON registers a handler replying with status and body encoded as JSON.
func (s *ArmServer) JSON(method, pathSuffix string, status int, body interface{}) {
	s.Handle(method, pathSuffix, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, body)
	})
}

// Requests returns the recorded requests matching method and path suffix, oldest first.
func (s *ArmServer) Requests(method, pathSuffix string) []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []RecordedRequest
	for _, r := range s.requests {
		if r.Method == method && strings.HasSuffix(r.Path, pathSuffix) {
			matched = append(matched, r)
		}
	}
	return matched
}

func (s *ArmServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	var handler http.HandlerFunc
	longest := -1
	for key, h := range s.routes {
		method, suffix, _ := strings.Cut(key, " ")
		if method == r.Method && strings.HasSuffix(r.URL.Path, suffix) && len(suffix) > longest {
			handler = h
			longest = len(suffix)
		}
	}
	s.mu.Unlock()

	if handler == nil {
		WriteJSON(w, http.StatusNotFound, ArmError("ResourceNotFound", fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path)))
		return
	}
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	handler(w, r)
}

// ArmError builds the management API error envelope.
func ArmError(code, message string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
