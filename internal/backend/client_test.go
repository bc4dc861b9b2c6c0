package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const testPassword = "letmein"

// stubBackend is a minimal in-memory implementation of the REST API used
// by the bridge: token auth, patient lookup, and palpation data storage.
type stubBackend struct {
	mu       sync.Mutex
	requests []string // "METHOD /path" in arrival order
	data     map[string]json.RawMessage
}

func newStubBackend() *stubBackend {
	return &stubBackend{data: make(map[string]json.RawMessage)}
}

func (s *stubBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()

		if r.Method == http.MethodPost && r.URL.Path == "/auth/token" {
			var creds map[string]string
			_ = json.NewDecoder(r.Body).Decode(&creds)
			if creds["password"] != testPassword {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
			return
		}

		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/patient":
			_, _ = w.Write([]byte(`[{"id":"8001011234567","name":"A"},{"id":"9001015555088","name":"B"}]`))

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/patient/"):
			id := strings.TrimPrefix(r.URL.Path, "/patient/")
			s.mu.Lock()
			stored, ok := s.data[id]
			s.mu.Unlock()
			if !ok {
				stored = json.RawMessage(`{}`)
			}
			_ = json.NewEncoder(w).Encode(map[string]json.RawMessage{
				"id":        json.RawMessage(`"` + id + `"`),
				"palpation": stored,
			})

		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/patient/data/"):
			id := strings.TrimPrefix(r.URL.Path, "/patient/data/")
			raw, _ := readAll(r)
			s.mu.Lock()
			s.data[id] = raw
			s.mu.Unlock()
			w.WriteHeader(http.StatusOK)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func readAll(r *http.Request) (json.RawMessage, error) {
	var raw json.RawMessage
	err := json.NewDecoder(r.Body).Decode(&raw)
	return raw, err
}

func (s *stubBackend) requestCount(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, req := range s.requests {
		if strings.HasPrefix(req, prefix) {
			n++
		}
	}
	return n
}

func TestAuthenticateSuccessCachesToken(t *testing.T) {
	stub := newStubBackend()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	client := NewClient(server.URL)
	token, err := client.Authenticate(context.Background(), testPassword)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if token != "tok-123" {
		t.Errorf("token = %q, want tok-123", token)
	}

	cached, ok := client.Token()
	if !ok || cached != "tok-123" {
		t.Errorf("Token() = %q, %v; want tok-123, true", cached, ok)
	}
}

func TestAuthenticateFailureKeepsOldToken(t *testing.T) {
	stub := newStubBackend()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.Authenticate(context.Background(), testPassword); err != nil {
		t.Fatal(err)
	}

	_, err := client.Authenticate(context.Background(), "wrong")
	if err == nil {
		t.Fatal("Authenticate() with bad password should fail")
	}
	if !IsAuthError(err) {
		t.Errorf("error should be auth error, got %v", err)
	}

	cached, ok := client.Token()
	if !ok || cached != "tok-123" {
		t.Errorf("failed auth must not clobber cached token, got %q, %v", cached, ok)
	}
}

func TestAuthenticatedCallsFailFastWithoutToken(t *testing.T) {
	stub := newStubBackend()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	client := NewClient(server.URL)

	if _, err := client.GetPatient(context.Background(), "8001011234567"); !IsTokenMissing(err) {
		t.Errorf("GetPatient without token: err = %v, want token-missing", err)
	}
	if _, err := client.GetAllPatients(context.Background()); !IsTokenMissing(err) {
		t.Errorf("GetAllPatients without token: err = %v, want token-missing", err)
	}
	if err := client.PostPalpation(context.Background(), "8001011234567", map[string]int{}); !IsTokenMissing(err) {
		t.Errorf("PostPalpation without token: err = %v, want token-missing", err)
	}

	// Fail-fast means no network call was attempted at all.
	if got := len(stub.requests); got != 0 {
		t.Errorf("stub saw %d requests, want 0", got)
	}
}

func TestNonSuccessStatusBecomesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/token" {
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.Authenticate(context.Background(), testPassword); err != nil {
		t.Fatal(err)
	}

	_, err := client.GetAllPatients(context.Background())
	if !IsHTTPError(err) {
		t.Fatalf("err = %v, want HTTP error", err)
	}
	var be *Error
	if !asBackendError(err, &be) || be.StatusCode != http.StatusInternalServerError {
		t.Errorf("error should carry status 500, got %+v", be)
	}
}

func TestPostThenGetRoundTrip(t *testing.T) {
	stub := newStubBackend()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.Authenticate(context.Background(), testPassword); err != nil {
		t.Fatal(err)
	}

	payload := map[string]map[string]*int{
		"R1": {"pain": intPtr(4), "force": intPtr(12)},
		"R2": {"pain": nil, "force": intPtr(45)},
	}
	if err := client.PostPalpation(context.Background(), "8001011234567", payload); err != nil {
		t.Fatalf("PostPalpation() error = %v", err)
	}

	record, err := client.GetPatient(context.Background(), "8001011234567")
	if err != nil {
		t.Fatalf("GetPatient() error = %v", err)
	}

	var decoded struct {
		ID        string                     `json:"id"`
		Palpation map[string]map[string]*int `json:"palpation"`
	}
	if err := json.Unmarshal(record, &decoded); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if decoded.ID != "8001011234567" {
		t.Errorf("id = %q, want 8001011234567", decoded.ID)
	}
	if got := decoded.Palpation["R1"]["force"]; got == nil || *got != 12 {
		t.Errorf("posted R1 force not reflected, got %v", got)
	}
	if got := decoded.Palpation["R2"]["pain"]; got != nil {
		t.Errorf("R2 pain should round-trip as null, got %v", got)
	}

	if got := stub.requestCount("GET /patient/8001011234567"); got != 1 {
		t.Errorf("GET /patient/<id> called %d times, want 1", got)
	}
}

func TestSetTimeout(t *testing.T) {
	client := NewClient("http://localhost:1")
	client.SetTimeout(3 * time.Second)
	if client.HTTPClient.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", client.HTTPClient.Timeout)
	}
}

func intPtr(v int) *int { return &v }

func asBackendError(err error, target **Error) bool {
	be, ok := err.(*Error)
	if ok {
		*target = be
	}
	return ok
}
