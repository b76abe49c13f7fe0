package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rohankatakam/manifestaudit/internal/mferrors"
)

// Load reads and decodes the manifest at path. A missing file is reported
// via os.IsNotExist on the returned error so callers can distinguish "not
// yet created" from a real failure.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, mferrors.Wrap(mferrors.KindCorruptManifest, "manifest is not valid JSON", err)
	}
	if _, ok := raw["repository"]; !ok {
		return nil, mferrors.New(mferrors.KindSchemaMismatch, "manifest missing required key \"repository\"")
	}
	if _, ok := raw["files"]; !ok {
		return nil, mferrors.New(mferrors.KindSchemaMismatch, "manifest missing required key \"files\"")
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, mferrors.Wrap(mferrors.KindCorruptManifest, "manifest does not match expected schema", err)
	}
	return &m, nil
}

// Save atomically writes the manifest to path: write to a sibling temp
// file, fsync, then rename over the destination.
func Save(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename manifest into place: %w", err)
	}
	return nil
}

// EntryPatch carries the subset of FileEntry fields a phase wants to merge
// for one path. Only non-zero/non-nil fields are written; it never blanks a
// field another phase owns.
type EntryPatch struct {
	Path      string
	BlobID    *string
	Size      *int64
	Extension *string

	Purpose           *string
	Category          *Category
	Confidence        *float64
	SecurityRelevance *SecurityRelevance
	Reasoning         *string
	Provider          *string
	Model             *string

	TokenStats *TokenStats

	// VulnerabilitiesSet distinguishes "not scanned" (nil Vulnerabilities,
	// VulnerabilitiesSet=false) from "scanned, none found" (non-nil empty
	// slice, VulnerabilitiesSet=true).
	Vulnerabilities    []Finding
	VulnerabilitiesSet bool

	RiskAssessment *RiskAssessment
}

// Merge applies patches to m in place, preserving m.Files order and
// appending brand-new paths at the end. Entries for paths no longer present
// in the repo are retained (orphan-tolerant) — Merge never deletes.
func Merge(m *Manifest, patches []EntryPatch) {
	idx := m.IndexByPath()

	for _, p := range patches {
		i, exists := idx[p.Path]
		if !exists {
			m.Files = append(m.Files, FileEntry{Path: p.Path})
			i = len(m.Files) - 1
			idx[p.Path] = i
		}
		applyPatch(&m.Files[i], p)
	}
}

func applyPatch(entry *FileEntry, p EntryPatch) {
	if p.BlobID != nil {
		entry.BlobID = *p.BlobID
	}
	if p.Size != nil {
		entry.Size = *p.Size
	}
	if p.Extension != nil {
		entry.Extension = *p.Extension
	}
	if p.Purpose != nil {
		entry.Purpose = *p.Purpose
	}
	if p.Category != nil {
		entry.Category = *p.Category
	}
	if p.Confidence != nil {
		entry.Confidence = p.Confidence
	}
	if p.SecurityRelevance != nil {
		entry.SecurityRelevance = *p.SecurityRelevance
	}
	if p.Reasoning != nil {
		entry.Reasoning = *p.Reasoning
	}
	if p.Provider != nil {
		entry.Provider = *p.Provider
	}
	if p.Model != nil {
		entry.Model = *p.Model
	}
	if p.TokenStats != nil {
		entry.TokenStats = p.TokenStats
	}
	if p.VulnerabilitiesSet {
		if p.Vulnerabilities == nil {
			entry.Vulnerabilities = []Finding{}
		} else {
			entry.Vulnerabilities = p.Vulnerabilities
		}
	}
	if p.RiskAssessment != nil {
		entry.RiskAssessment = p.RiskAssessment
	}
}
