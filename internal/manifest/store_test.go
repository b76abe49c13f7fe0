package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }
func f64ptr(f float64) *float64 { return &f }

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	m := &Manifest{
		Repository: Repository{
			URL:           "https://github.com/acme/widgets",
			DefaultBranch: "main",
			CommitSHA:     "deadbeef",
			FirstAnalyzed: time.Now().UTC().Truncate(time.Second),
		},
		Files: []FileEntry{
			{Path: "main.go", BlobID: "b1", Size: 120, Extension: ".go"},
		},
	}

	require.NoError(t, Save(path, m))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.Repository.CommitSHA, loaded.Repository.CommitSHA)
	require.Len(t, loaded.Files, 1)
	assert.Equal(t, "main.go", loaded.Files[0].Path)
}

func TestLoadCorruptManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"files": []}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestMergePreservesOrderAndAppendsNew(t *testing.T) {
	m := &Manifest{Files: []FileEntry{
		{Path: "a.go"},
		{Path: "b.go"},
	}}

	Merge(m, []EntryPatch{
		{Path: "b.go", Purpose: strptr("handles B")},
		{Path: "c.go", Purpose: strptr("new file")},
	})

	require.Len(t, m.Files, 3)
	assert.Equal(t, "a.go", m.Files[0].Path)
	assert.Equal(t, "b.go", m.Files[1].Path)
	assert.Equal(t, "handles B", m.Files[1].Purpose)
	assert.Equal(t, "c.go", m.Files[2].Path)
	assert.Equal(t, "new file", m.Files[2].Purpose)
}

func TestMergeDoesNotBlankOtherPhasesFields(t *testing.T) {
	m := &Manifest{Files: []FileEntry{
		{Path: "a.go", Purpose: "classified already", Category: CategoryAPI},
	}}

	// A later phase (e.g. C6 attaching vulnerabilities) patches only its
	// own fields.
	Merge(m, []EntryPatch{
		{Path: "a.go", VulnerabilitiesSet: true, Vulnerabilities: nil},
	})

	assert.Equal(t, "classified already", m.Files[0].Purpose)
	assert.Equal(t, CategoryAPI, m.Files[0].Category)
	assert.NotNil(t, m.Files[0].Vulnerabilities)
	assert.Empty(t, m.Files[0].Vulnerabilities)
}

func TestMergeScannedEmptyVsNotScanned(t *testing.T) {
	m := &Manifest{Files: []FileEntry{{Path: "a.go"}, {Path: "b.go"}}}
	assert.False(t, m.Files[0].Scanned())

	Merge(m, []EntryPatch{{Path: "a.go", VulnerabilitiesSet: true, Vulnerabilities: []Finding{}}})
	assert.True(t, m.Get("a.go").Scanned())
	assert.False(t, m.Get("b.go").Scanned())
}

func TestRiskAssessmentPatchOverwritesOwnPriorOutputOnly(t *testing.T) {
	m := &Manifest{Files: []FileEntry{{Path: "a.go", Purpose: "x"}}}

	Merge(m, []EntryPatch{{Path: "a.go", RiskAssessment: &RiskAssessment{RiskScore: 1, Priority: PriorityLow}}})
	Merge(m, []EntryPatch{{Path: "a.go", RiskAssessment: &RiskAssessment{RiskScore: 5, Priority: PriorityHigh}}})

	assert.Equal(t, "x", m.Files[0].Purpose)
	assert.Equal(t, PriorityHigh, m.Files[0].RiskAssessment.Priority)
}
