package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNotFound reports a manifest path that does not exist on disk.
var ErrNotFound = errors.New("manifest not found")

// Entry is a single declared dependency: a package name plus an optional
// version constraint such as "==1.2.3" or ">=2.0".
type Entry struct {
	Name       string
	Constraint string
}

// String renders the entry the way it appeared in the manifest.
func (e Entry) String() string {
	return e.Name + e.Constraint
}

// Manifest is the ordered dependency list read from a requirements file.
type Manifest struct {
	Path    string
	Entries []Entry
}

// Count returns the number of declared packages.
func (m *Manifest) Count() int {
	if m == nil {
		return 0
	}
	return len(m.Entries)
}

// Longest constraint operators must sort before their prefixes so "==" wins
// over "=".
var constraintOperators = []string{"===", "==", ">=", "<=", "!=", "~=", ">", "<"}

// Load reads and parses the manifest at path. A missing file returns
// ErrNotFound so callers can distinguish absence from malformed content.
func Load(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()

	m, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// Parse reads manifest entries from r. Lines are trimmed; blank lines and
// lines starting with # are skipped. Inline comments after an entry are
// stripped.
func Parse(r io.Reader) (*Manifest, error) {
	scanner := bufio.NewScanner(r)
	m := &Manifest{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		entry, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		m.Entries = append(m.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return m, nil
}

func parseLine(line string) (Entry, error) {
	name := line
	constraint := ""
	for _, op := range constraintOperators {
		if idx := strings.Index(line, op); idx >= 0 {
			name = strings.TrimSpace(line[:idx])
			constraint = op + strings.TrimSpace(line[idx+len(op):])
			break
		}
	}

	if name == "" {
		return Entry{}, fmt.Errorf("entry %q has no package name", line)
	}
	if strings.ContainsAny(name, " \t") {
		return Entry{}, fmt.Errorf("package name %q contains whitespace", name)
	}
	if strings.ContainsAny(name, "=<>!~") {
		return Entry{}, fmt.Errorf("entry %q has an unrecognized constraint", line)
	}
	for _, op := range constraintOperators {
		if constraint == op {
			return Entry{}, fmt.Errorf("entry %q has a constraint operator without a version", line)
		}
	}
	return Entry{Name: name, Constraint: constraint}, nil
}
