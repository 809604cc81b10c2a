package selection

import (
	"sync"

	"github.com/fitmirror/fitmirror/internal/logging"
	"github.com/fitmirror/fitmirror/internal/model"
	"github.com/fitmirror/fitmirror/internal/persist"
)

// demoPersonKeys maps the fixed demo photo set to its backend person keys.
// Custom uploads have no entry and therefore no person key.
var demoPersonKeys = map[string]string{
	"/assets/demo_pics/p1.jpg": "new_demo_person_1",
	"/assets/demo_pics/p2.jpg": "new_demo_person_2",
	"/assets/demo_pics/p3.jpg": "new_demo_person_3",
	"/assets/demo_pics/p4.jpg": "new_demo_person_4",
}

// DemoPersonKey returns the fixed person key for a demo photo URL, or ""
// when the URL is not part of the demo set.
func DemoPersonKey(demoURL string) string {
	return demoPersonKeys[demoURL]
}

// State tracks the user's current photo and garment choice. Every mutation
// checkpoints to the durable session so a reload restores the selection.
type State struct {
	mu sync.Mutex

	uploadedImagePayload string
	selectedGarmentURL   string
	selectedGarmentKey   any
	selectedDemoPhotoURL string
	selectedPersonKey    string

	session *persist.Session
	logger  logging.Logger
}

func New(session *persist.Session, logger logging.Logger) *State {
	if logger == nil {
		logger = logging.NewStdoutLogger("selection")
	}
	return &State{session: session, logger: logger}
}

// Snapshot is a read-only copy of the current selection.
type Snapshot struct {
	UploadedImagePayload string
	SelectedGarmentURL   string
	SelectedGarmentKey   any
	SelectedDemoPhotoURL string
	SelectedPersonKey    string
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		UploadedImagePayload: s.uploadedImagePayload,
		SelectedGarmentURL:   s.selectedGarmentURL,
		SelectedGarmentKey:   s.selectedGarmentKey,
		SelectedDemoPhotoURL: s.selectedDemoPhotoURL,
		SelectedPersonKey:    s.selectedPersonKey,
	}
}

// SelectPhoto sets the uploaded photo payload. For demo photos the person key
// comes from the fixed table; a user-uploaded file clears both demo fields
// (they are mutually exclusive). The payload is always persisted durably.
func (s *State) SelectPhoto(payload string, isDemo bool, demoURL string) {
	s.mu.Lock()
	s.uploadedImagePayload = payload
	if isDemo {
		s.selectedDemoPhotoURL = demoURL
		s.selectedPersonKey = demoPersonKeys[demoURL]
	} else {
		s.selectedDemoPhotoURL = ""
		s.selectedPersonKey = ""
	}
	s.mu.Unlock()

	if s.session != nil {
		s.session.SetUploadedImage(payload)
	}
}

// SelectGarment sets the garment choice and resolves its backend key through
// the active tab's lookup map. An empty url is the explicit clear-selection
// signal: both fields drop, including a previously known key. The url is
// persisted durably.
func (s *State) SelectGarment(url string, set *model.TabImageSet) {
	s.mu.Lock()
	s.selectedGarmentURL = url
	if url == "" {
		s.selectedGarmentKey = nil
	} else {
		s.selectedGarmentKey = set.Lookup(url)
	}
	s.mu.Unlock()

	if s.session != nil {
		s.session.SetClothingURL(url)
	}
}

// BackfillGarmentKey re-resolves the garment key against set. A garment URL
// restored from persistence before the owning tab's lookup map loaded has a
// nil key; this fixup must run again whenever a map becomes non-empty, so a
// reloaded session does not lose its key to load-order timing.
func (s *State) BackfillGarmentKey(set *model.TabImageSet) {
	if set.Empty() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedGarmentURL == "" || s.selectedGarmentKey != nil {
		return
	}
	if key := set.Lookup(s.selectedGarmentURL); key != nil {
		s.selectedGarmentKey = key
		s.logger.Debug("garment key backfilled",
			logging.Field{Key: "url", Value: s.selectedGarmentURL})
	}
}

// Restore loads the persisted photo and garment URL into memory. The garment
// key stays nil until a tab set arrives and BackfillGarmentKey resolves it.
func (s *State) Restore() {
	if s.session == nil {
		return
	}
	photo := s.session.UploadedImage()
	garment := s.session.ClothingURL()

	s.mu.Lock()
	defer s.mu.Unlock()
	if photo != "" {
		s.uploadedImagePayload = photo
	}
	if garment != "" {
		s.selectedGarmentURL = garment
	}
}

// ClearPhoto clears only photo-related fields and their persisted value.
func (s *State) ClearPhoto() {
	s.mu.Lock()
	s.uploadedImagePayload = ""
	s.selectedDemoPhotoURL = ""
	s.selectedPersonKey = ""
	s.mu.Unlock()

	if s.session != nil {
		s.session.ClearUploadedImage()
	}
}

// Reset clears the entire selection and its persisted keys. The full widget
// reset additionally clears the generation job; that orchestration lives one
// level up.
func (s *State) Reset() {
	s.mu.Lock()
	s.uploadedImagePayload = ""
	s.selectedGarmentURL = ""
	s.selectedGarmentKey = nil
	s.selectedDemoPhotoURL = ""
	s.selectedPersonKey = ""
	s.mu.Unlock()

	if s.session != nil {
		s.session.ClearUploadedImage()
		s.session.SetClothingURL("")
	}
}
