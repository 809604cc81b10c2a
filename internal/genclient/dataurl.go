package genclient

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var errNotDataURL = errors.New("not a data url")

// DecodeDataURL turns a stored "data:<mime>;base64,<payload>" string into
// bytes plus its MIME type. The session stores both the uploaded photo and
// the generated result in this representation.
func DecodeDataURL(dataURL string) (data []byte, mime string, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, "", errNotDataURL
	}
	meta, payload, ok := strings.Cut(dataURL[len("data:"):], ",")
	if !ok {
		return nil, "", errNotDataURL
	}
	mime = strings.TrimSuffix(meta, ";base64")
	if mime == meta {
		// Only base64 data URLs are produced by the widget's upload path.
		return nil, "", fmt.Errorf("unsupported data url encoding %q", meta)
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data url payload: %w", err)
	}
	return data, mime, nil
}

// EncodeDataURL is the inverse of DecodeDataURL.
func EncodeDataURL(data []byte, mime string) string {
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
