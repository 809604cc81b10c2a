package selection

import "github.com/fitmirror/fitmirror/internal/model"

// The derived membership sets behind "already generated" affordances. Pure
// functions over the externally supplied history list, recomputed wholesale
// on every history change. Only records with a non-empty key and a completed
// status count.

func GeneratedPersonKeys(history []model.HistoryRecord) map[string]struct{} {
	out := make(map[string]struct{})
	for _, rec := range history {
		if rec.Status == model.HistoryCompleted && rec.PersonKey != "" {
			out[rec.PersonKey] = struct{}{}
		}
	}
	return out
}

func GeneratedClothingKeys(history []model.HistoryRecord) map[string]struct{} {
	out := make(map[string]struct{})
	for _, rec := range history {
		if rec.Status == model.HistoryCompleted && rec.ClothingKey != "" {
			out[rec.ClothingKey] = struct{}{}
		}
	}
	return out
}

// GeneratedKeyCombinations returns the "person-clothing" pair set. Both keys
// must be present on a completed record for the pair to count.
func GeneratedKeyCombinations(history []model.HistoryRecord) map[string]struct{} {
	out := make(map[string]struct{})
	for _, rec := range history {
		if rec.Status != model.HistoryCompleted || rec.PersonKey == "" || rec.ClothingKey == "" {
			continue
		}
		out[rec.PersonKey+"-"+rec.ClothingKey] = struct{}{}
	}
	return out
}
