package citation

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Policy controls which references survive filtering and how the block
// is rendered.
type Policy struct {
	// MaxDisplayLength rejects display names longer than this. Zero
	// disables the length check.
	MaxDisplayLength int
	// AllowedExtensions restricts display names to a set of lower-case
	// file extensions (including the dot). Nil disables the check.
	AllowedExtensions map[string]bool
	// Header opens the rendered block.
	Header string
}

// StrictPolicy is the canonical filtering policy: display names of at
// most 50 characters whose extension is on the document allow-list.
func StrictPolicy() Policy {
	return Policy{
		MaxDisplayLength: 50,
		AllowedExtensions: map[string]bool{
			".txt": true, ".pdf": true, ".doc": true, ".docx": true,
			".ppt": true, ".pptx": true, ".xlsx": true, ".xls": true,
			".csv": true, ".json": true, ".jpeg": true, ".jpg": true,
			".png": true, ".md": true,
		},
		Header: Header,
	}
}

// OpenPolicy performs no filtering beyond deduplication.
func OpenPolicy() Policy {
	return Policy{Header: Header}
}

// Format renders the records into a citation block, or an empty string
// when no valid references survive. References are deduplicated by
// source identifier (not display name), filtered per the policy, sorted
// lexicographically and numbered from 1.
func (p Policy) Format(records []Record) string {
	seen := make(map[string]bool)
	var names []string

	for _, rec := range records {
		identifier, display, ok := rec.resolve()
		if !ok || seen[identifier] {
			continue
		}
		if p.MaxDisplayLength > 0 && len(display) > p.MaxDisplayLength {
			continue
		}
		if p.AllowedExtensions != nil {
			ext := strings.ToLower(filepath.Ext(display))
			if !p.AllowedExtensions[ext] {
				continue
			}
		}
		seen[identifier] = true
		names = append(names, display)
	}

	if len(names) == 0 {
		return ""
	}

	sort.Strings(names)

	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = fmt.Sprintf("%d. %s", i+1, name)
	}
	return p.Header + strings.Join(lines, "\n")
}
