// ABOUTME: Decoding of stored case documents into the versioned RawCase schema
// ABOUTME: Rejects documents written by a newer schema than this module understands
package portal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harperreed/fitout/models"
)

var (
	// ErrProjectNotFound is reported when the watched case document does not exist.
	ErrProjectNotFound = errors.New("Project not found") //nolint:staticcheck // shown verbatim to clients

	ErrUnsupportedSchema = errors.New("unsupported case schema version")
)

// DecodeCase parses a case document. Legacy documents without a schemaVersion
// decode as version 0.
func DecodeCase(data []byte) (*models.RawCase, error) {
	var raw models.RawCase
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode case: %w", err)
	}
	if raw.SchemaVersion < 0 || raw.SchemaVersion > models.CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, raw.SchemaVersion)
	}
	return &raw, nil
}
