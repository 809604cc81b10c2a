package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fitmirror/fitmirror/internal/genclient"
	"github.com/fitmirror/fitmirror/internal/logging"
	"github.com/fitmirror/fitmirror/internal/pageclient"
	"github.com/google/uuid"
)

// BatchGarment is one garment of a batch run.
type BatchGarment struct {
	URL         string
	ClothingKey string
}

// BatchItem is one garment's outcome. Err is set instead of Image when that
// garment failed; sibling items are unaffected.
type BatchItem struct {
	URL   string
	Image string
	Err   string
}

// BatchProgress is the running counter emitted after every item settles.
type BatchProgress struct {
	Completed int
	Failed    int
	Total     int
}

// BatchSummary is the terminal report of a batch run.
type BatchSummary struct {
	JobID      string
	Total      int
	Successful int
	Failed     int
	Items      []BatchItem
}

// BatchRunner generalizes the single-item machine to N garments against one
// photo: cart and outfit modes. Per-item failures are recorded against that
// item only and never abort siblings.
type BatchRunner struct {
	api        TryOnAPI
	page       pageclient.PageClient
	store      string
	version    string
	onProgress func(BatchProgress)
	logger     logging.Logger
}

func NewBatchRunner(api TryOnAPI, page pageclient.PageClient, store, version string, onProgress func(BatchProgress), logger logging.Logger) (*BatchRunner, error) {
	if api == nil {
		return nil, errors.New("lifecycle: batch runner requires an api")
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("lifecycle")
	}
	return &BatchRunner{
		api:        api,
		page:       page,
		store:      store,
		version:    version,
		onProgress: onProgress,
		logger:     logger,
	}, nil
}

// Run produces one independent result per garment against personPayload (a
// data URL). Partial failure is tolerated: a garment whose fetch or
// generation fails contributes a failed item and the run continues.
func (b *BatchRunner) Run(ctx context.Context, personPayload, personKey string, garments []BatchGarment) (*BatchSummary, error) {
	person, personMIME, err := genclient.DecodeDataURL(personPayload)
	if err != nil {
		return nil, fmt.Errorf("decode person payload: %w", err)
	}

	summary := &BatchSummary{
		JobID: uuid.New().String(),
		Total: len(garments),
		Items: make([]BatchItem, 0, len(garments)),
	}

	for _, g := range garments {
		item := BatchItem{URL: g.URL}
		image, err := b.one(ctx, person, personMIME, personKey, g)
		if err != nil {
			item.Err = err.Error()
			summary.Failed++
			b.logger.Warn("batch item failed",
				logging.Field{Key: "job_id", Value: summary.JobID},
				logging.Field{Key: "garment", Value: g.URL},
				logging.Field{Key: "error", Value: err.Error()})
		} else {
			item.Image = image
			summary.Successful++
		}
		summary.Items = append(summary.Items, item)

		if b.onProgress != nil {
			b.onProgress(BatchProgress{
				Completed: summary.Successful,
				Failed:    summary.Failed,
				Total:     summary.Total,
			})
		}
	}

	return summary, nil
}

// RunOutfit chains the garments into one combined result: each step's output
// becomes the next step's person input. All-or-nothing: any failure aborts
// the whole outfit.
func (b *BatchRunner) RunOutfit(ctx context.Context, personPayload, personKey string, garments []BatchGarment) (string, error) {
	if len(garments) == 0 {
		return "", errors.New("lifecycle: outfit requires at least one garment")
	}

	current := personPayload
	key := personKey
	for i, g := range garments {
		person, personMIME, err := genclient.DecodeDataURL(current)
		if err != nil {
			return "", fmt.Errorf("decode step %d input: %w", i, err)
		}
		image, err := b.one(ctx, person, personMIME, key, g)
		if err != nil {
			return "", fmt.Errorf("outfit step %d (%s): %w", i, g.URL, err)
		}
		current = image
		// Intermediate composites have no person key in the history.
		key = ""
	}
	return current, nil
}

func (b *BatchRunner) one(ctx context.Context, person []byte, personMIME, personKey string, g BatchGarment) (string, error) {
	garment, garmentMIME, err := b.fetchGarment(ctx, g.URL)
	if err != nil {
		return "", err
	}

	result, err := b.api.TryOn(ctx, genclient.TryOnRequest{
		Person:      person,
		PersonMIME:  personMIME,
		Garment:     garment,
		GarmentMIME: garmentMIME,
		Store:       b.store,
		ClothingKey: g.ClothingKey,
		PersonKey:   personKey,
		Version:     b.version,
	})
	if err != nil {
		return "", err
	}
	return result.Image, nil
}

func (b *BatchRunner) fetchGarment(ctx context.Context, url string) ([]byte, string, error) {
	if strings.HasPrefix(url, "data:") {
		return decodeInline(url)
	}
	if b.page == nil {
		return nil, "", errors.New("no page client configured")
	}
	resp, err := b.page.Get(ctx, url)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("garment fetch returned status %d", resp.StatusCode)
	}
	return resp.Body, resp.Headers.Get("Content-Type"), nil
}
