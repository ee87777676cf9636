package ingest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/auralab/song-arena/internal/domain"
)

func LoadPolicyFromFile(path string) (domain.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(data)
}

func ParsePolicy(data []byte) (domain.Policy, error) {
	var p domain.Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return domain.Policy{}, fmt.Errorf("parse policy YAML: %w", err)
	}
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return domain.Policy{}, err
	}
	return p, nil
}
