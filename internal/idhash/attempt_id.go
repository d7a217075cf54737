package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeAttemptID computes a deterministic per-attempt identifier using SHA256.
// Formula: SHA256(cycle_id|chain|dex|contract|attempt_index)
// Returns hex-encoded hash (64 characters).
//
// The ID is supplied to the venue on every submission so a retried request
// after an ambiguous network response cannot double-execute the same trade.
func ComputeAttemptID(
	cycleID string,
	chain string,
	dex string,
	contract string,
	attemptIndex int,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		cycleID,
		chain,
		dex,
		contract,
		attemptIndex,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
