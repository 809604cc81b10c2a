package persist

import (
	"encoding/json"

	"github.com/fitmirror/fitmirror/internal/model"
)

// The session keys. Uploaded image and generated result are stored as data
// URL strings, the garment as its URL, the in-flight flag as "1".
const (
	KeyUploadedImage  = "uploaded-image"
	KeyClothingURL    = "clothing-url"
	KeyGeneratedImage = "generated-image"
	KeyInflight       = "inflight"
	KeyCustomer       = "customer"
)

const inflightSet = "1"

// Session is the typed facade over the store's session keys. Readers tolerate
// missing or malformed values by returning zero values; writers replace the
// whole value.
type Session struct {
	store Store
}

func NewSession(store Store) *Session {
	return &Session{store: store}
}

func (s *Session) UploadedImage() string {
	v, _ := s.store.Get(KeyUploadedImage)
	return v
}

func (s *Session) SetUploadedImage(dataURL string) {
	_ = s.store.Set(KeyUploadedImage, dataURL)
}

func (s *Session) ClearUploadedImage() {
	_ = s.store.Delete(KeyUploadedImage)
}

func (s *Session) ClothingURL() string {
	v, _ := s.store.Get(KeyClothingURL)
	return v
}

func (s *Session) SetClothingURL(url string) {
	_ = s.store.Set(KeyClothingURL, url)
}

func (s *Session) GeneratedImage() string {
	v, _ := s.store.Get(KeyGeneratedImage)
	return v
}

func (s *Session) SetGeneratedImage(dataURL string) {
	_ = s.store.Set(KeyGeneratedImage, dataURL)
}

func (s *Session) ClearGeneratedImage() {
	_ = s.store.Delete(KeyGeneratedImage)
}

// SaveCustomer implements channel.CustomerSink.
func (s *Session) SaveCustomer(c model.Customer) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.store.Set(KeyCustomer, string(raw))
}

// Customer returns the persisted customer record, or a zero record when none
// is stored or the stored value is malformed.
func (s *Session) Customer() model.Customer {
	raw, err := s.store.Get(KeyCustomer)
	if err != nil {
		return model.Customer{}
	}
	var c model.Customer
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return model.Customer{}
	}
	return c
}

// ClearSession removes the four session keys. Execution is single-threaded
// and cooperative, so no partial-clear state is observable mid-operation.
func (s *Session) ClearSession() {
	_ = s.store.Delete(KeyUploadedImage)
	_ = s.store.Delete(KeyClothingURL)
	_ = s.store.Delete(KeyGeneratedImage)
	_ = s.store.Delete(KeyInflight)
}

// Marker is the durable in-flight flag with write-ahead semantics: Begin
// before dispatching a generation, Commit on success, Abort on failure. A
// pending marker at mount means a generation was interrupted by a reload.
type Marker struct {
	store Store
}

func NewMarker(store Store) *Marker {
	return &Marker{store: store}
}

func (m *Marker) Begin() {
	_ = m.store.Set(KeyInflight, inflightSet)
}

func (m *Marker) Commit() {
	_ = m.store.Delete(KeyInflight)
}

func (m *Marker) Abort() {
	_ = m.store.Delete(KeyInflight)
}

func (m *Marker) Pending() bool {
	v, err := m.store.Get(KeyInflight)
	return err == nil && v == inflightSet
}
