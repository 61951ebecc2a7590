package session

import (
	"encoding/json"
	"fmt"
)

const recordFormatVersion byte = 1

// Encode serializes r as a version byte followed by its JSON body.
func Encode(r *Record) ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, recordFormatVersion)
	return append(out, body...), nil
}

// Decode parses data produced by [Encode]. Unknown versions and malformed
// bodies return [ErrCorrupt].
func Decode(data []byte) (*Record, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: short record", ErrCorrupt)
	}
	if data[0] != recordFormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, data[0])
	}
	var r Record
	if err := json.Unmarshal(data[1:], &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &r, nil
}
