package genclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fitmirror/fitmirror/internal/genclient"
	"github.com/fitmirror/fitmirror/internal/logging"
)

func TestTryOnSuccess(t *testing.T) {
	var gotStore, gotClothingKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tryon" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotStore = r.FormValue("store")
		gotClothingKey = r.FormValue("clothing_key")
		if _, _, err := r.FormFile("person"); err != nil {
			t.Errorf("missing person part: %v", err)
		}
		if _, _, err := r.FormFile("garment"); err != nil {
			t.Errorf("missing garment part: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"image":  "data:image/png;base64,cmVzdWx0",
		})
	}))
	defer srv.Close()

	c := genclient.NewClient(srv.URL, srv.Client(), logging.NewTestLogger(false))
	res, err := c.TryOn(context.Background(), genclient.TryOnRequest{
		Person:      []byte("person-bytes"),
		Garment:     []byte("garment-bytes"),
		Store:       "demo-store",
		ClothingKey: "tee-001",
	})
	if err != nil {
		t.Fatalf("TryOn: %v", err)
	}
	if res.Image != "data:image/png;base64,cmVzdWx0" {
		t.Errorf("image = %q", res.Image)
	}
	if gotStore != "demo-store" {
		t.Errorf("store field = %q", gotStore)
	}
	if gotClothingKey != "tee-001" {
		t.Errorf("clothing_key field = %q", gotClothingKey)
	}
}

func TestTryOnAuthRequired(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http-401": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
		"structured": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"status":        "error",
				"auth_required": true,
			})
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			c := genclient.NewClient(srv.URL, srv.Client(), logging.NewTestLogger(false))
			_, err := c.TryOn(context.Background(), genclient.TryOnRequest{
				Person:  []byte("p"),
				Garment: []byte("g"),
			})
			if err != genclient.ErrAuthRequired {
				t.Fatalf("expected ErrAuthRequired, got %v", err)
			}
		})
	}
}

func TestTryOnBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":        "error",
			"error_message": map[string]string{"message": "garment not recognized"},
		})
	}))
	defer srv.Close()

	c := genclient.NewClient(srv.URL, srv.Client(), logging.NewTestLogger(false))
	_, err := c.TryOn(context.Background(), genclient.TryOnRequest{
		Person:  []byte("p"),
		Garment: []byte("g"),
	})
	if err == nil || err.Error() != "garment not recognized" {
		t.Fatalf("expected backend message to surface, got %v", err)
	}
}

func TestTryOnMissingInputs(t *testing.T) {
	c := genclient.NewClient("http://unused.example", nil, logging.NewTestLogger(false))
	if _, err := c.TryOn(context.Background(), genclient.TryOnRequest{Person: []byte("p")}); err == nil {
		t.Fatal("expected error without garment bytes")
	}
	if _, err := c.TryOn(context.Background(), genclient.TryOnRequest{Garment: []byte("g")}); err == nil {
		t.Fatal("expected error without person bytes")
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	in := []byte{0x89, 0x50, 0x4e, 0x47}
	enc := genclient.EncodeDataURL(in, "image/png")
	out, mime, err := genclient.DecodeDataURL(enc)
	if err != nil {
		t.Fatalf("DecodeDataURL: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("mime = %q", mime)
	}
	if string(out) != string(in) {
		t.Errorf("payload mismatch")
	}

	if _, _, err := genclient.DecodeDataURL("https://not-a-data-url.example/x.png"); err == nil {
		t.Error("expected error for non data url")
	}
	if _, _, err := genclient.DecodeDataURL("data:text/plain,hello"); err == nil {
		t.Error("expected error for non-base64 data url")
	}
}
