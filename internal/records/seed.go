package records

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/gradpath/advisor/internal/model"
)

// SeedFile is the YAML fixture format consumed by the seed command.
type SeedFile struct {
	Faculty  []model.FacultyRecord `yaml:"faculty"`
	Programs []model.ProgramRecord `yaml:"programs"`
}

// LoadSeedFile parses a YAML fixture file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "records: read seed file %s", path)
	}
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, eris.Wrapf(err, "records: parse seed file %s", path)
	}
	return &sf, nil
}

// Seed loads a fixture file into a seedable store.
func Seed(ctx context.Context, seeder Seeder, path string) (int, error) {
	sf, err := LoadSeedFile(path)
	if err != nil {
		return 0, err
	}
	if err := seeder.SeedFaculty(ctx, sf.Faculty); err != nil {
		return 0, err
	}
	if err := seeder.SeedPrograms(ctx, sf.Programs); err != nil {
		return 0, err
	}
	return len(sf.Faculty) + len(sf.Programs), nil
}
