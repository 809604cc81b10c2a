package persist_test

import (
	"errors"
	"testing"

	"github.com/fitmirror/fitmirror/internal/logging"
	"github.com/fitmirror/fitmirror/internal/model"
	"github.com/fitmirror/fitmirror/internal/persist"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := persist.NewSQLiteStore(t.TempDir(), logging.NewTestLogger(false))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	if _, err := store.Get("missing"); err != persist.ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := store.Set("uploaded-image", "data:image/png;base64,AAAA"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := store.Get("uploaded-image")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "data:image/png;base64,AAAA" {
		t.Errorf("Get = %q", v)
	}

	// Writes replace the whole value.
	if err := store.Set("uploaded-image", "data:image/png;base64,BBBB"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if v, _ := store.Get("uploaded-image"); v != "data:image/png;base64,BBBB" {
		t.Errorf("overwrite: Get = %q", v)
	}

	if err := store.Delete("uploaded-image"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get("uploaded-image"); err != persist.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewTestLogger(false)

	store, err := persist.NewSQLiteStore(dir, logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := store.Set("clothing-url", "https://shop.example/tee.jpg"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	store.Close()

	reopened, err := persist.NewSQLiteStore(dir, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	v, err := reopened.Get("clothing-url")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if v != "https://shop.example/tee.jpg" {
		t.Errorf("Get after reopen = %q", v)
	}
}

// brokenStore fails every operation, modeling an unavailable backing store.
type brokenStore struct{}

var errBroken = errors.New("disk on fire")

func (brokenStore) Get(key string) (string, error) { return "", errBroken }
func (brokenStore) Set(key, value string) error    { return errBroken }
func (brokenStore) Delete(key string) error        { return errBroken }
func (brokenStore) Close() error                   { return nil }

func TestSafeStoreDegrades(t *testing.T) {
	logger := logging.NewTestLogger(false)
	safe := persist.NewSafeStore(brokenStore{}, logger)

	if err := safe.Set("k", "v"); err != nil {
		t.Errorf("Set must swallow failures, got %v", err)
	}
	if err := safe.Delete("k"); err != nil {
		t.Errorf("Delete must swallow failures, got %v", err)
	}
	if _, err := safe.Get("k"); err != persist.ErrNotFound {
		t.Errorf("Get failure must degrade to ErrNotFound, got %v", err)
	}

	// Swallowed failures still surface as warnings, one per operation.
	if got := logger.CountLevel("warn"); got != 3 {
		t.Errorf("warnings = %d, want 3: %+v", got, logger.Entries())
	}
}

func TestSafeStorePassesNotFoundThrough(t *testing.T) {
	safe := persist.NewSafeStore(persist.NewMemStore(), logging.NewTestLogger(false))
	if _, err := safe.Get("never-set"); err != persist.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := persist.NewSession(persist.NewMemStore())

	if s.UploadedImage() != "" || s.ClothingURL() != "" || s.GeneratedImage() != "" {
		t.Fatal("fresh session must read empty")
	}

	s.SetUploadedImage("data:image/jpeg;base64,cGVyc29u")
	s.SetClothingURL("https://shop.example/jacket.jpg")
	s.SetGeneratedImage("data:image/png;base64,cmVzdWx0")

	if s.UploadedImage() != "data:image/jpeg;base64,cGVyc29u" {
		t.Errorf("UploadedImage = %q", s.UploadedImage())
	}
	if s.ClothingURL() != "https://shop.example/jacket.jpg" {
		t.Errorf("ClothingURL = %q", s.ClothingURL())
	}
	if s.GeneratedImage() != "data:image/png;base64,cmVzdWx0" {
		t.Errorf("GeneratedImage = %q", s.GeneratedImage())
	}
}

func TestSessionCustomer(t *testing.T) {
	s := persist.NewSession(persist.NewMemStore())

	if got := s.Customer(); got != (model.Customer{}) {
		t.Fatalf("expected zero customer, got %+v", got)
	}

	c := model.Customer{Email: "shopper@example.com", Authenticated: true}
	if err := s.SaveCustomer(c); err != nil {
		t.Fatalf("SaveCustomer: %v", err)
	}
	if got := s.Customer(); got != c {
		t.Errorf("Customer = %+v, want %+v", got, c)
	}
}

func TestClearSessionKeepsCustomer(t *testing.T) {
	store := persist.NewMemStore()
	s := persist.NewSession(store)
	m := persist.NewMarker(store)

	s.SetUploadedImage("data:person")
	s.SetClothingURL("https://shop.example/tee.jpg")
	s.SetGeneratedImage("data:result")
	m.Begin()
	_ = s.SaveCustomer(model.Customer{Email: "shopper@example.com"})

	s.ClearSession()

	if s.UploadedImage() != "" || s.ClothingURL() != "" || s.GeneratedImage() != "" {
		t.Error("ClearSession must remove selection and result")
	}
	if m.Pending() {
		t.Error("ClearSession must clear the in-flight marker")
	}
	if s.Customer().Email != "shopper@example.com" {
		t.Error("ClearSession must not touch the customer record")
	}
}

func TestMarker(t *testing.T) {
	m := persist.NewMarker(persist.NewMemStore())

	if m.Pending() {
		t.Fatal("fresh marker must not be pending")
	}
	m.Begin()
	if !m.Pending() {
		t.Fatal("marker must be pending after Begin")
	}
	m.Commit()
	if m.Pending() {
		t.Fatal("marker must be cleared after Commit")
	}
	m.Begin()
	m.Abort()
	if m.Pending() {
		t.Fatal("marker must be cleared after Abort")
	}
}
