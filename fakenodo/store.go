package fakenodo

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Deposition mirrors the subset of a Zenodo deposition the hub uses.
type Deposition struct {
	Id                string         `json:"id"`
	Metadata          map[string]any `json:"metadata"`
	Files             []string       `json:"files"`
	Doi               *string        `json:"doi"`
	PublishedVersions []Deposition   `json:"published_versions"`
	seq               int
}

// Store keeps depositions in memory.
type Store struct {
	mu          sync.Mutex
	depositions map[string]*Deposition
	seq         int
}

func NewStore() *Store {
	return &Store{depositions: make(map[string]*Deposition)}
}

func newDoi() string {
	return fmt.Sprintf("10.1234/fakezenodo.%s", uuid.NewString()[:8])
}

func (s *Store) Create(metadata map[string]any) Deposition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if metadata == nil {
		metadata = map[string]any{}
	}
	s.seq++
	d := &Deposition{
		Id:                uuid.NewString(),
		Metadata:          metadata,
		Files:             []string{},
		PublishedVersions: []Deposition{},
		seq:               s.seq,
	}
	s.depositions[d.Id] = d
	return d.clone()
}

func (s *Store) List() []Deposition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Deposition, 0, len(s.depositions))
	for _, d := range s.depositions {
		out = append(out, d.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (s *Store) Get(id string) (Deposition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.depositions[id]
	if !ok {
		return Deposition{}, false
	}
	return d.clone(), true
}

// UpdateMetadata merges metadata into the deposition. It never creates a
// new version or DOI.
func (s *Store) UpdateMetadata(id string, metadata map[string]any) (Deposition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.depositions[id]
	if !ok {
		return Deposition{}, false
	}
	for k, v := range metadata {
		d.Metadata[k] = v
	}
	return d.clone(), true
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.depositions[id]; !ok {
		return false
	}
	delete(s.depositions, id)
	return true
}

func (s *Store) AddFile(id, name string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.depositions[id]
	if !ok {
		return nil, false
	}
	if name == "" {
		name = "unnamed_file"
	}
	d.Files = append(d.Files, name)
	return append([]string(nil), d.Files...), true
}

// Publish creates a new version with a fresh DOI, which also becomes the
// deposition's current DOI.
func (s *Store) Publish(id string) (Deposition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.depositions[id]
	if !ok {
		return Deposition{}, false
	}
	doi := newDoi()
	version := d.clone()
	version.Doi = &doi
	version.PublishedVersions = nil
	d.Doi = &doi
	d.PublishedVersions = append(d.PublishedVersions, version)
	return version, true
}

func (s *Store) Versions(id string) ([]Deposition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.depositions[id]
	if !ok {
		return nil, false
	}
	return append([]Deposition{}, d.PublishedVersions...), true
}

func (d *Deposition) clone() Deposition {
	c := *d
	c.Metadata = make(map[string]any, len(d.Metadata))
	for k, v := range d.Metadata {
		c.Metadata[k] = v
	}
	c.Files = append([]string{}, d.Files...)
	c.PublishedVersions = append([]Deposition{}, d.PublishedVersions...)
	if d.Doi != nil {
		doi := *d.Doi
		c.Doi = &doi
	}
	return c
}
