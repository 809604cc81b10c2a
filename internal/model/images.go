package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tab identifies one of the widget's logical garment tabs. The three tab
// image sets are independent; writes to one never touch another.
type Tab string

const (
	TabSingle   Tab = "single"
	TabMultiple Tab = "multiple"
	TabLook     Tab = "look"
)

// ImageRef is one selectable image (garment or demo person). Identity within a
// tab set is by URL; ID is an opaque backend key used for generation requests
// and history matching, and may be absent.
type ImageRef struct {
	URL string `json:"url"`
	ID  any    `json:"id,omitempty"`
}

// TabImageSet is the authoritative image list for one tab: an ordered sequence
// of refs plus a url -> id lookup map. Sets are replaced wholesale whenever a
// source supplies a fresh list, never incrementally patched.
type TabImageSet struct {
	Refs    []ImageRef
	IDByURL map[string]any
}

// NewTabImageSet builds a set from refs. Duplicate URLs are kept in Refs;
// the lookup map collapses them last-write-wins.
func NewTabImageSet(refs []ImageRef) *TabImageSet {
	m := make(map[string]any, len(refs))
	for _, r := range refs {
		if r.ID != nil {
			m[r.URL] = r.ID
		} else if _, ok := m[r.URL]; !ok {
			m[r.URL] = nil
		}
	}
	return &TabImageSet{Refs: refs, IDByURL: m}
}

// Empty reports whether the set has no images.
func (s *TabImageSet) Empty() bool {
	return s == nil || len(s.Refs) == 0
}

// Lookup returns the backend id for url, or nil if the url is unknown.
func (s *TabImageSet) Lookup(url string) any {
	if s == nil || url == "" {
		return nil
	}
	return s.IDByURL[url]
}

// UnmarshalJSON accepts either a bare URL string or an {id,url} object, the
// two shapes hosts send in PRODUCT_IMAGES payloads.
func (r *ImageRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		r.URL = s
		r.ID = nil
		return nil
	}
	type plain struct {
		URL string `json:"url"`
		ID  any    `json:"id"`
	}
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("image entry: %w", err)
	}
	r.URL = p.URL
	r.ID = p.ID
	return nil
}
