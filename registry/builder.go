package registry

import (
	"github.com/google/uuid"

	"ble-adparser/bleuuid"
)

// Builder assembles a Snapshot. When a key is added twice the first record
// is kept and the duplicate is counted.
type Builder struct {
	s    *Snapshot
	dups int
}

// NewBuilder starts an empty snapshot read from source.
func NewBuilder(source string) *Builder {
	return &Builder{s: &Snapshot{
		Companies: make(map[int]Company),
		UUIDs:     make(map[int]AssignedUUID),
		ADTypes:   make(map[int]ADTypeInfo),
		Source:    source,
	}}
}

// AddCompany adds c unless its value is already present.
func (b *Builder) AddCompany(c Company) bool {
	if _, ok := b.s.Companies[c.Value]; ok {
		b.dups++
		return false
	}
	b.s.Companies[c.Value] = c
	return true
}

// AddUUID adds u unless its short UUID is already present. A missing full
// UUID is derived from the short one.
func (b *Builder) AddUUID(u AssignedUUID) bool {
	if _, ok := b.s.UUIDs[u.ShortUUID]; ok {
		b.dups++
		return false
	}
	if u.FullUUID == uuid.Nil {
		if u.ShortUUID > 0xFFFF {
			u.FullUUID = bleuuid.From32(uint32(u.ShortUUID))
		} else {
			u.FullUUID = bleuuid.From16(uint16(u.ShortUUID))
		}
	}
	b.s.UUIDs[u.ShortUUID] = u
	return true
}

// AddADType adds t unless its value is already present.
func (b *Builder) AddADType(t ADTypeInfo) bool {
	if _, ok := b.s.ADTypes[t.Value]; ok {
		b.dups++
		return false
	}
	b.s.ADTypes[t.Value] = t
	return true
}

// Duplicates reports how many records were dropped as duplicates.
func (b *Builder) Duplicates() int {
	return b.dups
}

// Snapshot returns the assembled snapshot. The builder must not be used afterwards.
func (b *Builder) Snapshot() *Snapshot {
	s := b.s
	b.s = nil
	return s
}
