package matching

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultThreshold is the minimum similarity for a fuzzy match
	DefaultThreshold = 0.5
	// DefaultMinTokenLength drops tokens shorter than this many characters
	DefaultMinTokenLength = 3
)

// DefaultStopWords are filler and packaging words that carry no product identity
var DefaultStopWords = []string{
	"the", "and", "with", "for", "from", "per",
	"pack", "packs", "box", "boxes", "case", "cases",
	"bag", "bags", "bottle", "bottles", "carton", "cartons",
	"tin", "tins", "jar", "jars", "tub", "tubs",
	"each", "unit", "units", "piece", "pieces", "pcs", "pkt",
	"tray", "trays", "roll", "rolls", "sachet", "sachets", "x",
}

var (
	ErrInvalidThreshold      = errors.New("threshold must be in (0, 1]")
	ErrInvalidMinTokenLength = errors.New("minimum token length must be at least 1")
)

// Options tunes tokenization and fuzzy matching
type Options struct {
	Threshold      float64  `yaml:"threshold"`
	MinTokenLength int      `yaml:"minTokenLength"`
	StopWords      []string `yaml:"stopWords"`
}

// DefaultOptions returns the matcher defaults
func DefaultOptions() Options {
	stopWords := make([]string, len(DefaultStopWords))
	copy(stopWords, DefaultStopWords)
	return Options{
		Threshold:      DefaultThreshold,
		MinTokenLength: DefaultMinTokenLength,
		StopWords:      stopWords,
	}
}

// Validate checks option bounds
func (o Options) Validate() error {
	if o.Threshold <= 0 || o.Threshold > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, o.Threshold)
	}
	if o.MinTokenLength < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMinTokenLength, o.MinTokenLength)
	}
	return nil
}

// ParseOptions decodes YAML over the defaults. Keys absent from the document
// keep their default values; an explicit empty stopWords list disables
// stop-word filtering.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("failed to parse matcher options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// LoadOptions reads matcher options from a YAML file. An empty path returns
// the defaults.
func LoadOptions(path string) (Options, error) {
	if path == "" {
		return DefaultOptions(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read matcher options %s: %w", path, err)
	}
	return ParseOptions(data)
}
