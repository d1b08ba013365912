package sources

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Set is the whitelist of source keys a query may return. Insertion order is
// kept so the store filter is stable between runs.
type Set struct {
	keys  map[string]bool
	order []string
}

func NewSet(keys ...string) *Set {
	s := &Set{keys: make(map[string]bool)}
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

func (s *Set) Add(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" || s.Contains(key) {
		return false
	}
	s.keys[key] = true
	s.order = append(s.order, key)
	return true
}

func (s *Set) Contains(key string) bool {
	return s.keys[key]
}

func (s *Set) List() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Set) Len() int {
	return len(s.order)
}

// Load reads a source list file with one key per line.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source list %s: %w", path, err)
	}
	defer f.Close()

	return Read(f)
}

func Read(r io.Reader) (*Set, error) {
	s := NewSet()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.Add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read source list: %w", err)
	}
	return s, nil
}
