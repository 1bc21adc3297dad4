package registry

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Paths inside a checkout of the Bluetooth SIG public repository.
var (
	sigCompaniesPath = filepath.Join("assigned_numbers", "company_identifiers", "company_identifiers.yaml")
	sigUUIDDir       = filepath.Join("assigned_numbers", "uuids")
	sigADTypesPath   = filepath.Join("assigned_numbers", "core", "ad_types.yaml")
)

type sigCompanies struct {
	Companies []struct {
		Value any    `yaml:"value"`
		Name  string `yaml:"name"`
	} `yaml:"company_identifiers"`
}

type sigUUIDs struct {
	UUIDs []struct {
		UUID any    `yaml:"uuid"`
		Name string `yaml:"name"`
		ID   string `yaml:"id"`
	} `yaml:"uuids"`
}

type sigADTypes struct {
	Types []struct {
		Value     any    `yaml:"value"`
		Name      string `yaml:"name"`
		Reference string `yaml:"reference"`
	} `yaml:"ad_types"`
}

// LoadSIG reads the assigned-number YAML files from a local checkout of the
// SIG repository rooted at root. UUID records take their category from the
// file name, e.g. "service_uuids". UUID files are read in name order; the
// first record for a key wins. It also returns the number of duplicate
// records that were dropped.
func LoadSIG(root string) (*Snapshot, int, error) {
	b := NewBuilder(root)

	var companies sigCompanies
	if err := readYAML(filepath.Join(root, sigCompaniesPath), &companies); err != nil {
		return nil, 0, err
	}
	for i, c := range companies.Companies {
		v, err := intValue(c.Value)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "company_identifiers[%d]", i)
		}
		b.AddCompany(Company{Value: v, Name: strings.TrimSpace(c.Name)})
	}

	files, err := filepath.Glob(filepath.Join(root, sigUUIDDir, "*.yaml"))
	if err != nil {
		return nil, 0, err
	}
	for _, f := range files {
		var uuids sigUUIDs
		if err := readYAML(f, &uuids); err != nil {
			return nil, 0, err
		}
		category := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		for i, u := range uuids.UUIDs {
			v, err := intValue(u.UUID)
			if err != nil {
				return nil, 0, errors.Wrapf(err, "%s uuids[%d]", category, i)
			}
			b.AddUUID(AssignedUUID{
				ShortUUID: v,
				Name:      strings.TrimSpace(u.Name),
				ID:        u.ID,
				Category:  category,
			})
		}
	}

	var types sigADTypes
	if err := readYAML(filepath.Join(root, sigADTypesPath), &types); err != nil {
		return nil, 0, err
	}
	for i, t := range types.Types {
		v, err := intValue(t.Value)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "ad_types[%d]", i)
		}
		b.AddADType(ADTypeInfo{Value: v, Name: t.Name, Reference: t.Reference})
	}

	dups := b.Duplicates()
	return b.Snapshot(), dups, nil
}

func readYAML(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read assigned numbers")
	}
	if err := yaml.Unmarshal(raw, v); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

// intValue accepts the forms the SIG files use for ids: YAML integers
// (including 0x literals) and hex strings.
func intValue(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case uint64:
		return int(t), nil
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		n, err := strconv.ParseInt(strings.TrimPrefix(s, "0x"), 16, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "id %q", t)
		}
		return int(n), nil
	}
	return 0, errors.Errorf("unsupported id %v (%T)", v, v)
}
