package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// System is one retrieval engine under evaluation. The config hash is derived
// from the canonical JSON form of the config blob so identical configs map to
// the same hash regardless of upload order.
type System struct {
	ID         string         `json:"system_id"`
	Config     map[string]any `json:"config_json,omitempty"`
	ConfigHash string         `json:"config_hash,omitempty"`
	DatasetID  string         `json:"dataset_id"`
}

// HashConfig computes the canonical SHA-256 hash of a config blob.
// encoding/json sorts map keys, which gives us canonical output for free.
func HashConfig(config map[string]any) string {
	if config == nil {
		return ""
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
