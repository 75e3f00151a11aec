package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeSessionID computes a deterministic session_id using SHA256.
// Formula: SHA256(date|symbol|run_id)
// Returns hex-encoded hash (64 characters).
func ComputeSessionID(date, symbol, runID string) string {
	data := fmt.Sprintf("%s|%s|%s",
		date,
		symbol,
		runID,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
