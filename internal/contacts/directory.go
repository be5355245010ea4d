// Package contacts loads the company people directory from vCard
// files and answers lookup queries from the agent's find_contact tool.
package contacts

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/emersion/go-vcard"
)

// Person is a single directory entry.
type Person struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Title string `json:"title,omitempty"`
	Org   string `json:"org,omitempty"`
}

// Directory holds the people directory loaded from a folder of .vcf
// files. Reload replaces the full set; lookups are goroutine-safe.
type Directory struct {
	dir    string
	logger *slog.Logger

	mu     sync.RWMutex
	people []Person
}

// NewDirectory creates a directory backed by the given folder of .vcf
// files and performs the initial load. A missing folder is not an
// error; the directory starts empty.
func NewDirectory(dir string, logger *slog.Logger) (*Directory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Directory{
		dir:    dir,
		logger: logger.With("integration", "contacts"),
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-reads all vCard files from disk, replacing the in-memory
// set.
func (d *Directory) Reload() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			d.logger.Warn("contacts directory does not exist", "dir", d.dir)
			return nil
		}
		return fmt.Errorf("read contacts directory %s: %w", d.dir, err)
	}

	var people []Person
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".vcf") {
			continue
		}
		path := filepath.Join(d.dir, entry.Name())
		loaded, err := loadVCardFile(path)
		if err != nil {
			d.logger.Warn("skipping unreadable vCard file", "path", path, "error", err)
			continue
		}
		people = append(people, loaded...)
	}

	sort.Slice(people, func(i, j int) bool {
		return people[i].Name < people[j].Name
	})

	d.mu.Lock()
	d.people = people
	d.mu.Unlock()

	d.logger.Info("contacts loaded", "count", len(people), "dir", d.dir)
	return nil
}

// Count returns the number of loaded directory entries.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.people)
}

// Find returns directory entries whose name, title, or organization
// contains the query, case-insensitively. Results keep the directory's
// name order.
func (d *Directory) Find(query string) []Person {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var matches []Person
	for _, p := range d.people {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Title), q) ||
			strings.Contains(strings.ToLower(p.Org), q) ||
			strings.Contains(strings.ToLower(p.Email), q) {
			matches = append(matches, p)
		}
	}
	return matches
}

// loadVCardFile parses all cards from a single .vcf file. A file may
// hold one card or a whole exported address book.
func loadVCardFile(path string) ([]Person, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := vcard.NewDecoder(f)

	var people []Person
	for {
		card, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode vCard: %w", err)
		}

		p := personFromCard(card)
		if p.Name == "" && p.Email == "" {
			continue
		}
		people = append(people, p)
	}
	return people, nil
}

// personFromCard extracts the directory fields from a parsed vCard.
func personFromCard(card vcard.Card) Person {
	p := Person{
		Name:  card.PreferredValue(vcard.FieldFormattedName),
		Email: card.PreferredValue(vcard.FieldEmail),
		Title: card.PreferredValue(vcard.FieldTitle),
	}
	if org := card.Get(vcard.FieldOrganization); org != nil {
		// ORG is semicolon-separated: company;department;team. The
		// first component is the organization name.
		parts := strings.SplitN(org.Value, ";", 2)
		p.Org = strings.TrimSpace(parts[0])
	}
	return p
}
