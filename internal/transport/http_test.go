package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"blobparty/internal/pkg/errs"
)

// newFakeAPIServer stands up an in-memory game server speaking the JSON
// envelope protocol, with a tiny storage map behind it.
func newFakeAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := make(map[string]json.RawMessage)

	respond := func(w http.ResponseWriter, code int, message string, data any) {
		encoded, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("fake server failed to marshal data: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jsonEnvelope{Code: code, Message: message, Data: encoded})
	}

	router := chi.NewRouter()

	router.Post("/v1/account/authenticate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Server-Key") != "testkey" {
			respond(w, errs.ErrUnauthenticated, "bad server key", nil)
			return
		}

		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respond(w, errs.ErrUnknown, "bad body", nil)
			return
		}

		if body.Password == "wrong" {
			respond(w, errs.ErrInvalidCredentials, "Incorrect email or password.", nil)
			return
		}

		token := "tok-" + body.Email
		if r.URL.Query().Get("create") == "true" {
			token = "new-" + token
		}
		respond(w, 0, "success", map[string]string{"token": token})
	})

	router.Get("/v1/storage/{collection}/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "collection") + "/" + chi.URLParam(r, "key")
		raw, ok := store[key]
		if !ok {
			respond(w, 0, "success", nil)
			return
		}
		respond(w, 0, "success", raw)
	})

	router.Put("/v1/storage/{collection}/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "collection") + "/" + chi.URLParam(r, "key")
		var raw json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			respond(w, errs.ErrUnknown, "bad body", nil)
			return
		}
		store[key] = raw
		respond(w, 0, "success", nil)
	})

	router.Delete("/v1/storage/{collection}/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "collection") + "/" + chi.URLParam(r, "key")
		delete(store, key)
		respond(w, 0, "success", nil)
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestAuthenticate(t *testing.T) {
	server := newFakeAPIServer(t)
	client := NewClient(server.URL, "testkey")
	ctx := context.Background()

	token, customErr := client.Authenticate(ctx, "a@b.c", "hunter2", false)
	if customErr != nil {
		t.Fatalf("Authenticate failed: %v", customErr)
	}
	if token != "tok-a@b.c" {
		t.Fatalf("token = %q", token)
	}

	created, customErr := client.Authenticate(ctx, "a@b.c", "hunter2", true)
	if customErr != nil {
		t.Fatalf("Authenticate(create) failed: %v", customErr)
	}
	if created != "new-tok-a@b.c" {
		t.Fatalf("create flag not forwarded, token = %q", created)
	}
}

func TestAuthenticateServerErrorPassesThrough(t *testing.T) {
	server := newFakeAPIServer(t)
	client := NewClient(server.URL, "testkey")

	_, customErr := client.Authenticate(context.Background(), "a@b.c", "wrong", false)
	if customErr == nil || customErr.Code != errs.ErrInvalidCredentials {
		t.Fatalf("Authenticate = %v, want ErrInvalidCredentials verbatim", customErr)
	}
	if customErr.Message != "Incorrect email or password." {
		t.Fatalf("message = %q, want the server's message verbatim", customErr.Message)
	}
}

func TestStorageRoundTrip(t *testing.T) {
	server := newFakeAPIServer(t)
	client := NewClient(server.URL, "testkey")
	ctx := context.Background()

	// Absent records read back as nil, not an error.
	raw, customErr := client.ReadObject(ctx, "tok", "characters", "list")
	if customErr != nil {
		t.Fatalf("ReadObject(absent) failed: %v", customErr)
	}
	if raw != nil {
		t.Fatalf("ReadObject(absent) = %s, want nil", raw)
	}

	value := map[string]string{"name": "blobby", "color": "1,0,0"}
	if customErr := client.WriteObject(ctx, "tok", "characters", "list", value); customErr != nil {
		t.Fatalf("WriteObject failed: %v", customErr)
	}

	raw, customErr = client.ReadObject(ctx, "tok", "characters", "list")
	if customErr != nil {
		t.Fatalf("ReadObject failed: %v", customErr)
	}

	var readBack map[string]string
	if err := json.Unmarshal(raw, &readBack); err != nil || readBack["name"] != "blobby" {
		t.Fatalf("read back %s", raw)
	}

	if customErr := client.DeleteObject(ctx, "tok", "characters", "list"); customErr != nil {
		t.Fatalf("DeleteObject failed: %v", customErr)
	}

	raw, _ = client.ReadObject(ctx, "tok", "characters", "list")
	if raw != nil {
		t.Fatal("record survived DeleteObject")
	}
}

func TestServerUnreachable(t *testing.T) {
	server := newFakeAPIServer(t)
	server.Close()

	client := NewClient(server.URL, "testkey")

	_, customErr := client.Authenticate(context.Background(), "a@b.c", "x", false)
	if customErr == nil || customErr.Code != errs.ErrTransportUnavailable {
		t.Fatalf("Authenticate against dead server = %v, want ErrTransportUnavailable", customErr)
	}
}
