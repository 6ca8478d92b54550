package mapstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Section keys of the unified map document
const (
	SectionFog        = "fog"
	SectionSettings   = "settings"
	SectionGrid       = "grid"
	SectionCharacters = "characters"
	SectionTimestamp  = "timestamp"
	SectionVersion    = "version"
)

// DocumentVersion is stamped into freshly constructed documents
const DocumentVersion = "1.0"

// Document is the per-map unified document. Sections are kept as raw JSON so
// that sections this process does not understand round-trip untouched.
type Document map[string]json.RawMessage

// DefaultDocument builds a minimal document with sane defaults for every section
// except fog, which is left for the fog engine to fill in.
func DefaultDocument() Document {
	doc := Document{}
	_ = doc.SetSection(SectionSettings, map[string]interface{}{
		"zoom":     1.0,
		"panX":     0.0,
		"panY":     0.0,
		"rotation": 0.0,
	})
	_ = doc.SetSection(SectionGrid, map[string]interface{}{
		"size":    50,
		"offsetX": 0,
		"offsetY": 0,
		"visible": false,
	})
	_ = doc.SetSection(SectionCharacters, map[string]interface{}{
		"players": []interface{}{},
		"enemies": []interface{}{},
	})
	_ = doc.SetSection(SectionVersion, DocumentVersion)
	return doc
}

// ParseDocument decodes raw bytes into a Document. Anything other than a JSON
// object (including empty input and null) is rejected as corrupt.
func ParseDocument(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrCorrupt)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is not an object", ErrCorrupt)
	}
	return doc, nil
}

// Marshal encodes the document as indented JSON
func (d Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Has reports whether a non-null section exists
func (d Document) Has(key string) bool {
	raw, ok := d[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Section decodes the named section into v. It returns false when the section
// is absent or null.
func (d Document) Section(key string, v interface{}) (bool, error) {
	if !d.Has(key) {
		return false, nil
	}
	if err := json.Unmarshal(d[key], v); err != nil {
		return true, fmt.Errorf("decode section %q: %w", key, err)
	}
	return true, nil
}

// SetSection encodes v into the named section
func (d Document) SetSection(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode section %q: %w", key, err)
	}
	d[key] = raw
	return nil
}

// Touch stamps the last-modified marker
func (d Document) Touch(now time.Time) {
	_ = d.SetSection(SectionTimestamp, now.UTC().Format(time.RFC3339Nano))
}
