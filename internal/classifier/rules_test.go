package classifier

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/ctd-organizer/internal/taxonomy"
)

func TestDefaultRulesTargetTaxonomy(t *testing.T) {
	idx, _ := taxonomy.Build(taxonomy.Default(), "organized_ctd")
	keys := idx.Keys()

	containedIn := func(token string) bool {
		for _, k := range keys {
			if strings.Contains(k, token) {
				return true
			}
		}
		return false
	}

	for _, rule := range DefaultRules() {
		assert.True(t, containedIn(rule.Category), "keyword category %q has no folder", rule.Category)
		for _, p := range rule.Phrases {
			assert.Equal(t, strings.ToLower(p), p, "phrase %q must be lowercase", p)
		}
	}
	for _, rule := range DefaultFilenameRules() {
		assert.True(t, containedIn(rule.Target), "filename target %q has no folder", rule.Target)
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `keywords:
  - category: "3.2.P.8 Stability"
    phrases: ["Shelf Life", "  accelerated stability "]
  - category: "1.0.1 Cover Letter"
    phrases: ["cover letter"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	set, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, set.Keywords, 2)
	assert.Equal(t, []string{"shelf life", "accelerated stability"}, set.Keywords[0].Phrases)
	assert.Equal(t, DefaultFilenameRules(), set.Filename)
}

func TestLoadRulesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	content := `{"keywords":[{"category":"2.5 Clinical Overview","phrases":["clinical overview"]}],
"filename_rules":[{"patterns":["CO-"],"target":"2.5 Clinical Overview","label":"Clinical Overview"}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	set, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, set.Filename, 1)
	assert.Equal(t, []string{"co-"}, set.Filename[0].Patterns)
	assert.Equal(t, "Clinical Overview", set.Filename[0].Label)
}

func TestLoadRulesErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"no keywords", "keywords: []\n"},
		{"missing category", "keywords:\n  - phrases: [a]\n"},
		{"blank phrases", "keywords:\n  - category: x\n    phrases: [\" \"]\n"},
		{"missing target", "keywords:\n  - category: x\n    phrases: [a]\nfilename_rules:\n  - patterns: [b]\n"},
		{"invalid yaml", "keywords: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := LoadRules(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadRules(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
