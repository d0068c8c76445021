package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-yield/internal/models"
)

//go:embed default.yaml
var defaultTable []byte

// File is the YAML root structure of a knowledge-base table.
type File struct {
	Entries []models.KBEntry `yaml:"entries"`
}

// Base is an immutable keyword index over a knowledge-base table.
type Base struct {
	entries []models.KBEntry
	index   map[string][]int
}

// Default returns the built-in knowledge base.
func Default() *Base {
	base, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("built-in knowledge base is invalid: %v", err))
	}
	return base
}

// Load reads a table from path. An empty path yields the built-in table.
func Load(path string) (*Base, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML table and builds its index.
func Parse(data []byte) (*Base, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode knowledge base: %w", err)
	}
	return New(file.Entries)
}

// New indexes entries in load order. Entry ids must be unique and non-empty.
func New(entries []models.KBEntry) (*Base, error) {
	base := &Base{
		entries: make([]models.KBEntry, 0, len(entries)),
		index:   make(map[string][]int),
	}
	seen := make(map[string]struct{}, len(entries))
	for i, entry := range entries {
		entry.ID = strings.TrimSpace(entry.ID)
		if entry.ID == "" {
			return nil, fmt.Errorf("knowledge base entry %d has no id", i)
		}
		if _, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("duplicate knowledge base entry id %q", entry.ID)
		}
		seen[entry.ID] = struct{}{}

		pos := len(base.entries)
		keywords := make(map[string]struct{}, len(entry.Keywords))
		for _, kw := range entry.Keywords {
			norm := Normalize(kw)
			if norm == "" {
				continue
			}
			if _, ok := keywords[norm]; ok {
				continue
			}
			keywords[norm] = struct{}{}
			base.index[norm] = append(base.index[norm], pos)
		}
		base.entries = append(base.entries, entry)
	}
	return base, nil
}

// Len returns the number of entries.
func (b *Base) Len() int {
	return len(b.entries)
}

// Query returns entries sharing at least one keyword with the query, ranked
// by how many distinct query keywords they match, ties in load order. No match
// is an empty result.
func (b *Base) Query(keywords []string) []models.KBMatch {
	matched := make(map[int][]string)
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		norm := Normalize(kw)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		for _, pos := range b.index[norm] {
			matched[pos] = append(matched[pos], norm)
		}
	}

	positions := make([]int, 0, len(matched))
	for pos := range matched {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		a, c := positions[i], positions[j]
		if len(matched[a]) != len(matched[c]) {
			return len(matched[a]) > len(matched[c])
		}
		return a < c
	})

	results := make([]models.KBMatch, 0, len(positions))
	for _, pos := range positions {
		results = append(results, models.KBMatch{KBEntry: b.entries[pos], MatchedKeywords: matched[pos]})
	}
	return results
}

// Normalize lower-cases a keyword and collapses internal whitespace.
func Normalize(keyword string) string {
	return strings.Join(strings.Fields(strings.ToLower(keyword)), " ")
}
