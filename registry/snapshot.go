package registry

import (
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// snapshotFile is the on-disk form of a Snapshot: snappy-framed JSON with
// records sorted by key.
type snapshotFile struct {
	Source    string         `json:"source"`
	Companies []Company      `json:"company_identifiers"`
	UUIDs     []AssignedUUID `json:"uuids"`
	ADTypes   []ADTypeInfo   `json:"ad_types"`
}

// WriteSnapshot encodes s to w.
func WriteSnapshot(w io.Writer, s *Snapshot) error {
	f := snapshotFile{Source: s.Source}
	for _, c := range s.Companies {
		f.Companies = append(f.Companies, c)
	}
	sort.Slice(f.Companies, func(i, j int) bool { return f.Companies[i].Value < f.Companies[j].Value })
	for _, u := range s.UUIDs {
		f.UUIDs = append(f.UUIDs, u)
	}
	sort.Slice(f.UUIDs, func(i, j int) bool { return f.UUIDs[i].ShortUUID < f.UUIDs[j].ShortUUID })
	for _, t := range s.ADTypes {
		f.ADTypes = append(f.ADTypes, t)
	}
	sort.Slice(f.ADTypes, func(i, j int) bool { return f.ADTypes[i].Value < f.ADTypes[j].Value })

	sw := snappy.NewBufferedWriter(w)
	if err := json.NewEncoder(sw).Encode(&f); err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	return sw.Close()
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var f snapshotFile
	if err := json.NewDecoder(snappy.NewReader(r)).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	b := NewBuilder(f.Source)
	for _, c := range f.Companies {
		b.AddCompany(c)
	}
	for _, u := range f.UUIDs {
		b.AddUUID(u)
	}
	for _, t := range f.ADTypes {
		b.AddADType(t)
	}
	return b.Snapshot(), nil
}

// SaveSnapshot writes s to path.
func SaveSnapshot(path string, s *Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSnapshot(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// OpenSnapshot reads a snapshot from path.
func OpenSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSnapshot(f)
}
