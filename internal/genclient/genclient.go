package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/fitmirror/fitmirror/internal/logging"
)

// ErrAuthRequired distinguishes "sign in first" from generic generation
// failures; callers surface it with a sign-in call to action and never
// auto-retry it.
var ErrAuthRequired = errors.New("genclient: authentication required")

// TryOnRequest carries both input binaries plus the identifiers the backend
// matches against its generation history.
type TryOnRequest struct {
	Person      []byte
	PersonMIME  string
	Garment     []byte
	GarmentMIME string

	// Store is the normalized shop identifier.
	Store string

	ClothingKey string
	PersonKey   string
	Version     string
}

// TryOnResult is the parsed success response.
type TryOnResult struct {
	// Image is the composite result as a data URL.
	Image string
}

// apiResponse is the backend wire shape.
type apiResponse struct {
	Status       string `json:"status"`
	Image        string `json:"image,omitempty"`
	ErrorMessage *struct {
		Message string `json:"message"`
	} `json:"error_message,omitempty"`
	AuthRequired bool `json:"auth_required,omitempty"`
}

// Client talks to the external generation backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
}

func NewClient(baseURL string, httpClient *http.Client, logger logging.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("genclient")
	}
	return &Client{baseURL: baseURL, http: httpClient, logger: logger}
}

// TryOn posts person and garment binaries and returns the composite image.
// A 401/403 status or a structured auth signal maps to ErrAuthRequired; every
// other failure is a generic generation error.
func (c *Client) TryOn(ctx context.Context, req TryOnRequest) (*TryOnResult, error) {
	if len(req.Person) == 0 || len(req.Garment) == 0 {
		return nil, errors.New("genclient: person and garment binaries are required")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := writeImagePart(w, "person", "person.png", req.Person); err != nil {
		return nil, err
	}
	if err := writeImagePart(w, "garment", "garment.png", req.Garment); err != nil {
		return nil, err
	}
	fields := map[string]string{
		"store":        req.Store,
		"clothing_key": req.ClothingKey,
		"person_key":   req.PersonKey,
		"version":      req.Version,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := w.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tryon", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrAuthRequired
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read generation response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse generation response (status %d): %w", resp.StatusCode, err)
	}

	if parsed.AuthRequired {
		return nil, ErrAuthRequired
	}
	if parsed.Status != "success" || parsed.Image == "" {
		msg := "generation failed"
		if parsed.ErrorMessage != nil && parsed.ErrorMessage.Message != "" {
			msg = parsed.ErrorMessage.Message
		}
		return nil, errors.New(msg)
	}

	return &TryOnResult{Image: parsed.Image}, nil
}

func writeImagePart(w *multipart.Writer, field, filename string, data []byte) error {
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("create %s part: %w", field, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write %s part: %w", field, err)
	}
	return nil
}
