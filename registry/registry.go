// Package registry holds the Bluetooth SIG assigned-number tables: company
// identifiers, assigned UUIDs and advertising data types.
//
// A Registry is a handle on an immutable Snapshot. Refreshing the tables
// swaps the whole snapshot; readers keep using the one they loaded.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a key has no entry.
var ErrNotFound = errors.New("not found")

// Company is an assigned company identifier.
type Company struct {
	Value int    `json:"value" yaml:"value"`
	Name  string `json:"name" yaml:"name"`
}

// AssignedUUID is a SIG assigned 16-bit UUID.
type AssignedUUID struct {
	ShortUUID int       `json:"short_uuid"`
	FullUUID  uuid.UUID `json:"full_uuid"`
	Name      string    `json:"name"`
	ID        string    `json:"id,omitempty"`
	Category  string    `json:"category"`
}

// ADTypeInfo describes an advertising data type code.
type ADTypeInfo struct {
	Value     int    `json:"value" yaml:"value"`
	Name      string `json:"name" yaml:"name"`
	Reference string `json:"reference" yaml:"reference"`
}

// Snapshot is one immutable version of the three tables. Callers must not
// modify the maps.
type Snapshot struct {
	Companies map[int]Company
	UUIDs     map[int]AssignedUUID
	ADTypes   map[int]ADTypeInfo
	// Source names where the tables were read from.
	Source string
}

// Company looks up a company identifier.
func (s *Snapshot) Company(id int) (Company, bool) {
	if s == nil {
		return Company{}, false
	}
	c, ok := s.Companies[id]
	return c, ok
}

// CompanyName returns the company name for id, if assigned.
func (s *Snapshot) CompanyName(id int) (string, bool) {
	c, ok := s.Company(id)
	return c.Name, ok
}

// UUID looks up an assigned 16-bit UUID.
func (s *Snapshot) UUID(short int) (AssignedUUID, bool) {
	if s == nil {
		return AssignedUUID{}, false
	}
	u, ok := s.UUIDs[short]
	return u, ok
}

// ADType looks up an advertising data type.
func (s *Snapshot) ADType(value int) (ADTypeInfo, bool) {
	if s == nil {
		return ADTypeInfo{}, false
	}
	t, ok := s.ADTypes[value]
	return t, ok
}

// Registry is a handle on the current Snapshot. The zero value holds no
// snapshot and answers every lookup with not-found.
type Registry struct {
	cur atomic.Pointer[Snapshot]
}

// New returns a registry serving s.
func New(s *Snapshot) *Registry {
	r := &Registry{}
	r.Store(s)
	return r
}

// Load returns the current snapshot. It may be nil.
func (r *Registry) Load() *Snapshot {
	return r.cur.Load()
}

// Store replaces the current snapshot.
func (r *Registry) Store(s *Snapshot) {
	r.cur.Store(s)
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry, built from the packaged tables
// on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		s, err := Embedded()
		if err != nil {
			panic(err)
		}
		defaultReg = New(s)
	})
	return defaultReg
}
