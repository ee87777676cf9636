package domain

import "fmt"

// Default policy parameters.
const (
	DefaultRetrievalDepthK = 50
	DefaultFinalK          = 5
	DefaultMaxPerArtist    = 1
	DefaultTaskBlockSize   = 10
)

// Policy is the versioned filtering and presentation configuration.
// Exactly one policy is active at a time; activating a new one deactivates
// all others at the store.
type Policy struct {
	Version           string `json:"version" yaml:"version"`
	RetrievalDepthK   int    `json:"retrieval_depth_k" yaml:"retrieval_depth_k"`
	FinalK            int    `json:"final_k" yaml:"final_k"`
	MaxPerArtist      int    `json:"max_per_artist" yaml:"max_per_artist"`
	ExcludeSeedArtist bool   `json:"exclude_seed_artist" yaml:"exclude_seed_artist"`
	TaskBlockSize     int    `json:"task_block_size" yaml:"task_block_size"`
}

// WithDefaults returns a copy with zero-valued numeric fields replaced by
// the defaults.
func (p Policy) WithDefaults() Policy {
	if p.RetrievalDepthK == 0 {
		p.RetrievalDepthK = DefaultRetrievalDepthK
	}
	if p.FinalK == 0 {
		p.FinalK = DefaultFinalK
	}
	if p.MaxPerArtist == 0 {
		p.MaxPerArtist = DefaultMaxPerArtist
	}
	if p.TaskBlockSize == 0 {
		p.TaskBlockSize = DefaultTaskBlockSize
	}
	return p
}

func (p Policy) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("policy has no version")
	}
	if p.FinalK < 1 {
		return fmt.Errorf("policy %q: final_k must be >= 1", p.Version)
	}
	if p.RetrievalDepthK < p.FinalK {
		return fmt.Errorf("policy %q: retrieval_depth_k (%d) must be >= final_k (%d)",
			p.Version, p.RetrievalDepthK, p.FinalK)
	}
	if p.MaxPerArtist < 1 {
		return fmt.Errorf("policy %q: max_per_artist must be >= 1", p.Version)
	}
	return nil
}
