package registry

import (
	"embed"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Resource file names, as written by `registry sync` and packaged in resources/.
const (
	CompaniesFile = "company_identifiers.json"
	UUIDsFile     = "uuids.json"
	ADTypesFile   = "ad_types.json"
)

//go:embed resources/*.json
var packaged embed.FS

// Embedded returns the tables packaged with the binary.
func Embedded() (*Snapshot, error) {
	sub, err := fs.Sub(packaged, "resources")
	if err != nil {
		return nil, err
	}
	return LoadJSON(sub, "embedded")
}

// LoadJSON reads the three resource files from the root of fsys. Each file is
// a JSON object keyed by the decimal id.
func LoadJSON(fsys fs.FS, source string) (*Snapshot, error) {
	b := NewBuilder(source)

	var companies map[string]Company
	if err := readJSON(fsys, CompaniesFile, &companies); err != nil {
		return nil, err
	}
	for _, k := range sortedKeys(companies) {
		b.AddCompany(companies[k])
	}

	var uuids map[string]AssignedUUID
	if err := readJSON(fsys, UUIDsFile, &uuids); err != nil {
		return nil, err
	}
	for _, k := range sortedKeys(uuids) {
		b.AddUUID(uuids[k])
	}

	var types map[string]ADTypeInfo
	if err := readJSON(fsys, ADTypesFile, &types); err != nil {
		return nil, err
	}
	for _, k := range sortedKeys(types) {
		b.AddADType(types[k])
	}
	return b.Snapshot(), nil
}

func readJSON(fsys fs.FS, name string, v any) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return errors.Wrapf(err, "read %s", name)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrapf(err, "decode %s", name)
	}
	return nil
}

// sortedKeys orders decimal keys numerically so loading is deterministic.
func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})
	return keys
}

// WriteJSON writes s as the three resource files into dir.
func WriteJSON(dir string, s *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	companies := make(map[string]Company, len(s.Companies))
	for k, v := range s.Companies {
		companies[strconv.Itoa(k)] = v
	}
	uuids := make(map[string]AssignedUUID, len(s.UUIDs))
	for k, v := range s.UUIDs {
		uuids[strconv.Itoa(k)] = v
	}
	types := make(map[string]ADTypeInfo, len(s.ADTypes))
	for k, v := range s.ADTypes {
		types[strconv.Itoa(k)] = v
	}
	files := []struct {
		name string
		v    any
	}{
		{CompaniesFile, companies},
		{UUIDsFile, uuids},
		{ADTypesFile, types},
	}
	for _, f := range files {
		b, err := json.MarshalIndent(f.v, "", "  ")
		if err != nil {
			return errors.Wrapf(err, "encode %s", f.name)
		}
		if err := os.WriteFile(filepath.Join(dir, f.name), b, 0o644); err != nil {
			return err
		}
	}
	return nil
}
