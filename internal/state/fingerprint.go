package state

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

// Fingerprint returns blake3:<hex> over the canonical JSON encoding of a
// snapshot. encoding/json sorts map keys, so equal snapshots hash equally.
func Fingerprint(snapshot map[string]string) (string, error) {
	if snapshot == nil {
		snapshot = map[string]string{}
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	sum := blake3.Sum256(body)
	return "blake3:" + hex.EncodeToString(sum[:]), nil
}
