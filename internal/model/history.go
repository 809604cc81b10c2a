package model

// HistoryStatus values mirror the backend's generation-history records.
const (
	HistoryCompleted = "completed"
	HistoryPending   = "pending"
	HistoryFailed    = "failed"
)

// HistoryRecord is one externally sourced generation-history entry. The widget
// never writes these; it only derives membership sets from them.
type HistoryRecord struct {
	PersonKey   string `json:"person_key"`
	ClothingKey string `json:"clothing_key"`
	Status      string `json:"status"`
}
