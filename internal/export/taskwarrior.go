// Package export writes taskwarrior import records.
package export

import (
	"encoding/json"
	"fmt"
	"io"
)

// Record is a single taskwarrior import record: field names (including
// UDAs) mapped to their values.
type Record = map[string]interface{}

// Write encodes records as an indented JSON array suitable for
// `task import`.
func Write(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding taskwarrior records: %w", err)
	}
	return nil
}
