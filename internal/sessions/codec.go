package sessions

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/onnwee/charrank/internal/engine"
)

// Snapshot codec errors.
var (
	ErrInvalidSnapshot = errors.New("invalid snapshot data")
)

// EncodeSnapshot serializes a session snapshot to CBOR bytes for storage.
func EncodeSnapshot(snap *engine.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, ErrInvalidSnapshot
	}
	data, err := cbor.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot deserializes CBOR bytes back into a session snapshot.
func DecodeSnapshot(data []byte) (*engine.Snapshot, error) {
	if len(data) == 0 {
		return nil, ErrInvalidSnapshot
	}
	var snap engine.Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snap.ItemCount < 0 {
		return nil, fmt.Errorf("%w: negative item count", ErrInvalidSnapshot)
	}
	return &snap, nil
}
