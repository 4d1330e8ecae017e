package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/muurk/devtree/internal/subsys"
)

// NewEnumerator implements subsys.Subsystem.
func (s *Subsystem) NewEnumerator(session subsys.Raw) subsys.Raw {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(session, kindSession)
	return s.alloc(&object{kind: kindEnumerator})
}

// EnumeratorAddMatch implements subsys.Subsystem.
func (s *Subsystem) EnumeratorAddMatch(enum subsys.Raw, m subsys.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(enum, kindEnumerator)
	o.matches = append(o.matches, m)
}

// EnumeratorScan implements subsys.Subsystem. Devices are discovered
// through the class and bus symlink farms and filtered by the
// enumerator's matches.
func (s *Subsystem) EnumeratorScan(enum subsys.Raw) ([]string, error) {
	s.mu.Lock()
	matches := append([]subsys.Match(nil), s.get(enum, kindEnumerator).matches...)
	s.mu.Unlock()

	seen := make(map[string]bool)

	// <root>/class/<subsystem>/<name> -> ../../devices/...
	classDir := filepath.Join(s.root, "class")
	if err := s.collectLinks(classDir, 2, seen); err != nil {
		return nil, err
	}
	// <root>/bus/<bus>/devices/<name> -> ../../../devices/...
	busDir := filepath.Join(s.root, "bus")
	buses, err := readDirNames(busDir)
	if err != nil {
		return nil, err
	}
	for _, bus := range buses {
		if err := s.collectLinks(filepath.Join(busDir, bus, "devices"), 1, seen); err != nil {
			return nil, err
		}
	}

	var paths []string
	for sp := range seen {
		rec, err := readDevice(s.root, sp)
		if err != nil {
			// Raced with device removal mid-scan.
			continue
		}
		if recordPasses(matches, rec) {
			paths = append(paths, sp)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// collectLinks resolves the symlinks found depth levels below dir and
// records their targets. A missing dir yields an empty tree, not an
// error; sysfs omits whole directories when nothing populates them.
func (s *Subsystem) collectLinks(dir string, depth int, seen map[string]bool) error {
	names, err := readDirNames(dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		p := filepath.Join(dir, name)
		if depth > 1 {
			if err := s.collectLinks(p, depth-1, seen); err != nil {
				return err
			}
			continue
		}
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			continue
		}
		seen[resolved] = true
	}
	return nil
}

func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// recordPasses applies the AND of all matches to one device record.
func recordPasses(matches []subsys.Match, rec *record) bool {
	for _, m := range matches {
		if m.Subsystem != "" && m.Subsystem != rec.subsystem {
			return false
		}
		if m.Sysname != "" {
			if ok, _ := filepath.Match(m.Sysname, rec.sysname); !ok {
				return false
			}
		}
		if m.Property != "" && rec.props[m.Property] != m.Value {
			return false
		}
	}
	return true
}
