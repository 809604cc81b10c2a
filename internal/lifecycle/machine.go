package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/fitmirror/fitmirror/internal/genclient"
	"github.com/fitmirror/fitmirror/internal/logging"
	"github.com/fitmirror/fitmirror/internal/pageclient"
	"github.com/fitmirror/fitmirror/internal/persist"
	"github.com/fitmirror/fitmirror/internal/selection"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

var (
	// ErrMissingInputs rejects a generate request before any transition:
	// both a photo and a garment are required.
	ErrMissingInputs = errors.New("lifecycle: photo and garment must be selected before generating")

	// ErrAlreadyRunning rejects a generate request while one is in flight.
	ErrAlreadyRunning = errors.New("lifecycle: generation already running")
)

// AuthRequiredMessage is the distinct user-facing text for the
// authentication-required failure subtype; it directs the user to sign in
// instead of showing a generic error, and is never auto-retried.
const AuthRequiredMessage = "Please sign in to generate try-on images."

// Job is the externally visible generation state.
type Job struct {
	Status             Status
	Progress           int
	ResultImagePayload string
	ErrorMessage       string
	AuthRequired       bool
}

// TryOnAPI is the slice of the generation client the machine needs;
// genclient.Client satisfies it.
type TryOnAPI interface {
	TryOn(ctx context.Context, req genclient.TryOnRequest) (*genclient.TryOnResult, error)
}

// Config wires a Machine.
type Config struct {
	Selection *selection.State
	Session   *persist.Session
	Marker    *persist.Marker
	API       TryOnAPI

	// Page fetches garment binaries from their URLs.
	Page pageclient.PageClient

	// Store is the normalized shop identifier sent with every request.
	Store string

	// Version tags requests for the backend's model routing. Optional.
	Version string

	// OnTransition observes every job change. Optional, called outside the
	// machine lock.
	OnTransition func(Job)

	Logger logging.Logger
}

// Machine orchestrates the async generation call: idle -> running ->
// success|failed, with a durable in-flight marker so an interrupted run can
// resume after a reload. There is no cancellation token for a dispatched
// request; a reset during running moves the state to idle immediately and the
// eventual completion is discarded by an epoch check.
type Machine struct {
	cfg    Config
	logger logging.Logger

	mu      sync.Mutex
	job     Job
	epoch   int
	resumed bool
}

func NewMachine(cfg Config) (*Machine, error) {
	if cfg.Selection == nil || cfg.Session == nil || cfg.Marker == nil || cfg.API == nil {
		return nil, errors.New("lifecycle: selection, session, marker and api are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("lifecycle")
	}
	return &Machine{
		cfg:    cfg,
		logger: logger,
		job:    Job{Status: StatusIdle},
	}, nil
}

// Job returns a copy of the current job state.
func (m *Machine) Job() Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job
}

func (m *Machine) notify(job Job) {
	if m.cfg.OnTransition != nil {
		m.cfg.OnTransition(job)
	}
}

func (m *Machine) setProgress(epoch, progress int) {
	m.mu.Lock()
	if m.epoch != epoch || m.job.Status != StatusRunning {
		m.mu.Unlock()
		return
	}
	m.job.Progress = progress
	job := m.job
	m.mu.Unlock()
	m.notify(job)
}

// Generate runs one generation to a terminal state. The guard is synchronous:
// without both inputs it returns ErrMissingInputs and no transition happens.
func (m *Machine) Generate(ctx context.Context) error {
	snap := m.cfg.Selection.Snapshot()
	if snap.UploadedImagePayload == "" || snap.SelectedGarmentURL == "" {
		return ErrMissingInputs
	}

	m.mu.Lock()
	if m.job.Status == StatusRunning {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.epoch++
	epoch := m.epoch
	m.job = Job{Status: StatusRunning, Progress: 0}
	job := m.job
	m.mu.Unlock()
	m.notify(job)

	m.cfg.Marker.Begin()
	committed := false
	// Flag clearing must not depend on which failure branch was taken. A run
	// that lost its epoch no longer owns the marker, though: the reset already
	// aborted it and a successor run may have re-armed it since.
	defer func() {
		if committed {
			return
		}
		m.mu.Lock()
		owns := m.epoch == epoch
		m.mu.Unlock()
		if owns {
			m.cfg.Marker.Abort()
		}
	}()

	result, err := m.run(ctx, epoch, snap)
	if err != nil {
		return m.fail(epoch, err)
	}
	if result == nil {
		// Stale completion: the machine left running while we were out.
		return nil
	}

	m.cfg.Session.SetGeneratedImage(result.Image)
	m.cfg.Marker.Commit()
	committed = true

	m.mu.Lock()
	if m.epoch != epoch || m.job.Status != StatusRunning {
		m.mu.Unlock()
		return nil
	}
	m.job = Job{Status: StatusSuccess, Progress: 100, ResultImagePayload: result.Image}
	job = m.job
	m.mu.Unlock()
	m.notify(job)

	m.logger.Info("generation succeeded")
	return nil
}

// run converts the stored inputs into binaries and calls the backend. A nil
// result with nil error means the run went stale and its outcome must be
// discarded.
func (m *Machine) run(ctx context.Context, epoch int, snap selection.Snapshot) (*genclient.TryOnResult, error) {
	person, personMIME, err := genclient.DecodeDataURL(snap.UploadedImagePayload)
	if err != nil {
		return nil, fmt.Errorf("decode person payload: %w", err)
	}
	m.setProgress(epoch, 10)

	garment, garmentMIME, err := m.fetchGarment(ctx, snap.SelectedGarmentURL)
	if err != nil {
		return nil, fmt.Errorf("fetch garment: %w", err)
	}
	m.setProgress(epoch, 30)

	req := genclient.TryOnRequest{
		Person:      person,
		PersonMIME:  personMIME,
		Garment:     garment,
		GarmentMIME: garmentMIME,
		Store:       m.cfg.Store,
		ClothingKey: keyString(snap.SelectedGarmentKey),
		PersonKey:   snap.SelectedPersonKey,
		Version:     m.cfg.Version,
	}

	result, err := m.cfg.API.TryOn(ctx, req)
	if err != nil {
		return nil, err
	}
	m.setProgress(epoch, 90)

	m.mu.Lock()
	stale := m.epoch != epoch || m.job.Status != StatusRunning
	m.mu.Unlock()
	if stale {
		m.logger.Debug("discarding stale generation result")
		return nil, nil
	}
	return result, nil
}

// fetchGarment downloads the garment binary. Garments stored as data URLs
// (demo assets) decode locally instead.
func (m *Machine) fetchGarment(ctx context.Context, url string) ([]byte, string, error) {
	if strings.HasPrefix(url, "data:") {
		return decodeInline(url)
	}
	if m.cfg.Page == nil {
		return nil, "", errors.New("no page client configured")
	}
	resp, err := m.cfg.Page.Get(ctx, url)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("garment fetch returned status %d", resp.StatusCode)
	}
	return resp.Body, resp.Headers.Get("Content-Type"), nil
}

func decodeInline(url string) ([]byte, string, error) {
	data, mime, err := genclient.DecodeDataURL(url)
	if err != nil {
		return nil, "", err
	}
	return data, mime, nil
}

// fail records a terminal failure unless the run went stale. The
// authentication-required subtype keeps its distinct message.
func (m *Machine) fail(epoch int, cause error) error {
	authRequired := errors.Is(cause, genclient.ErrAuthRequired)
	msg := cause.Error()
	if authRequired {
		msg = AuthRequiredMessage
	}

	m.mu.Lock()
	if m.epoch != epoch || m.job.Status != StatusRunning {
		m.mu.Unlock()
		return nil
	}
	m.job = Job{Status: StatusFailed, ErrorMessage: msg, AuthRequired: authRequired}
	job := m.job
	m.mu.Unlock()
	m.notify(job)

	m.logger.Warn("generation failed",
		logging.Field{Key: "auth_required", Value: authRequired},
		logging.Field{Key: "error", Value: cause.Error()})
	return cause
}

// Reset returns the machine to idle, clearing generation fields and the
// persisted generation keys. Photo and garment selection survive so a failed
// run can be retried without re-uploading; only the widget's full reset
// clears those too.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.epoch++
	m.job = Job{Status: StatusIdle}
	job := m.job
	m.mu.Unlock()

	m.cfg.Session.ClearGeneratedImage()
	m.cfg.Marker.Abort()
	m.notify(job)
}

// ResumeIfPending re-enters running after a reload that interrupted a
// generation: the durable marker is set, both inputs are persisted and no
// result exists yet. This is the sole automatic transition into running and
// fires at most once per machine; callers invoke it again whenever persisted
// state finishes loading, since restores may complete after the first check.
func (m *Machine) ResumeIfPending(ctx context.Context) bool {
	if !m.cfg.Marker.Pending() {
		return false
	}
	if m.cfg.Session.UploadedImage() == "" || m.cfg.Session.ClothingURL() == "" {
		return false
	}
	if m.cfg.Session.GeneratedImage() != "" {
		// The previous run finished; the marker is a leftover.
		m.cfg.Marker.Abort()
		return false
	}

	// The in-memory selection may lag the durable session when restores load
	// asynchronously; pull it up before the guard in Generate sees it.
	snap := m.cfg.Selection.Snapshot()
	if snap.UploadedImagePayload == "" || snap.SelectedGarmentURL == "" {
		m.cfg.Selection.Restore()
	}

	m.mu.Lock()
	if m.resumed || m.job.Status != StatusIdle {
		m.mu.Unlock()
		return false
	}
	m.resumed = true
	m.mu.Unlock()

	m.logger.Info("resuming interrupted generation")
	go func() {
		if err := m.Generate(ctx); err != nil {
			m.logger.Warn("resumed generation failed",
				logging.Field{Key: "error", Value: err.Error()})
		}
	}()
	return true
}

func keyString(key any) string {
	switch v := key.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		// Numeric ids decoded from JSON land here; %v would render large
		// values in scientific notation.
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
