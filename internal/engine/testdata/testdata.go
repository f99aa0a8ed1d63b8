package testdata

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed corpus.json
var corpusJSON []byte

// CorpusEntry is an exported Windows security record with its expected verdict.
// ExpectedScore 0 means the record must not produce a finding.
type CorpusEntry struct {
	Description     string         `json:"description"`
	Record          map[string]any `json:"record"`
	ExpectedScore   int            `json:"expected_score"`
	ExpectedName    string         `json:"expected_name,omitempty"`
	ExpectedReasons []string       `json:"expected_reasons,omitempty"`
}

// LoadCorpus parses the embedded corpus.json and returns all entries.
func LoadCorpus() ([]CorpusEntry, error) {
	var entries []CorpusEntry
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}
