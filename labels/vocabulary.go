package labels

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/poiesic/dataprep/core"
)

// OnMissing selects what Build does when the vocabulary file is absent or
// unreadable.
type OnMissing int

const (
	// Abort fails the build with an error wrapping core.ErrConfig.
	Abort OnMissing = iota
	// DegradeEmpty logs a warning and returns an empty vocabulary.
	DegradeEmpty
)

// ParseOnMissing maps a flag value to an OnMissing policy.
func ParseOnMissing(name string) (OnMissing, error) {
	switch strings.ToLower(name) {
	case "", "abort":
		return Abort, nil
	case "empty", "degrade":
		return DegradeEmpty, nil
	default:
		return Abort, fmt.Errorf("%w: unknown missing-vocabulary policy %q", core.ErrConfig, name)
	}
}

func (p OnMissing) String() string {
	if p == DegradeEmpty {
		return "empty"
	}
	return "abort"
}

// Vocabulary is an ordered set of distinct labels.
type Vocabulary struct {
	labels []string
	index  map[string]int
}

type buildOptions struct {
	onMissing OnMissing
	logger    *slog.Logger
}

// Option configures Build.
type Option func(*buildOptions)

// WithOnMissing sets the missing-file policy. The default is Abort.
func WithOnMissing(policy OnMissing) Option {
	return func(o *buildOptions) {
		o.onMissing = policy
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// Build reads a newline-delimited label list from path. Blank lines are
// skipped and a trailing carriage return is trimmed from each line.
func Build(path string, opts ...Option) (*Vocabulary, error) {
	o := buildOptions{onMissing: Abort, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("component", "labels")

	f, err := os.Open(path)
	if err != nil {
		if o.onMissing == DegradeEmpty {
			logger.Warn("label vocabulary unavailable, continuing with no labels", "path", path, "err", err)
			return New(nil)
		}
		return nil, fmt.Errorf("%w: open label vocabulary: %w", core.ErrConfig, err)
	}
	defer f.Close()

	vocab, err := Read(f)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded label vocabulary", "path", path, "size", vocab.Size())
	return vocab, nil
}

// Read parses a newline-delimited label list from r.
func Read(r io.Reader) (*Vocabulary, error) {
	var list []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		list = append(list, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read label vocabulary: %w", core.ErrIO, err)
	}
	return New(list)
}

// New builds a vocabulary from labels in basis order. Duplicates are
// rejected.
func New(labels []string) (*Vocabulary, error) {
	v := &Vocabulary{
		labels: make([]string, 0, len(labels)),
		index:  make(map[string]int, len(labels)),
	}
	for _, label := range labels {
		if _, dup := v.index[label]; dup {
			return nil, fmt.Errorf("%w: duplicate label %q", core.ErrConfig, label)
		}
		v.index[label] = len(v.labels)
		v.labels = append(v.labels, label)
	}
	return v, nil
}

// Size returns the number of labels, C.
func (v *Vocabulary) Size() int {
	return len(v.labels)
}

// Labels returns a copy of the labels in basis order.
func (v *Vocabulary) Labels() []string {
	out := make([]string, len(v.labels))
	copy(out, v.labels)
	return out
}

// Index returns the basis index of label.
func (v *Vocabulary) Index(label string) (int, bool) {
	i, ok := v.index[label]
	return i, ok
}

// OneHot returns the vector with only position i set.
func (v *Vocabulary) OneHot(i int) (*bitset.BitSet, error) {
	if i < 0 || i >= len(v.labels) {
		return nil, fmt.Errorf("label index %d out of range [0, %d)", i, len(v.labels))
	}
	bs := bitset.New(uint(len(v.labels)))
	bs.Set(uint(i))
	return bs, nil
}

// Validate reports the first label not present in the vocabulary.
func (v *Vocabulary) Validate(labels []string) error {
	for _, label := range labels {
		if _, ok := v.index[label]; !ok {
			return fmt.Errorf("%w: %q", core.ErrUnknownLabel, label)
		}
	}
	return nil
}

// Encode returns the OR of the one-hot vectors of labels. Repeated labels
// set the same bit, so encoding is idempotent.
func (v *Vocabulary) Encode(labels []string) (*bitset.BitSet, error) {
	bs := bitset.New(uint(len(v.labels)))
	for _, label := range labels {
		i, ok := v.index[label]
		if !ok {
			return nil, fmt.Errorf("%w: %q", core.ErrUnknownLabel, label)
		}
		bs.Set(uint(i))
	}
	return bs, nil
}

// EncodeInto writes the multi-hot encoding of labels into dst as 0/1
// values. dst must have length Size(); it is fully overwritten.
func (v *Vocabulary) EncodeInto(labels []string, dst []int32) error {
	if len(dst) != len(v.labels) {
		return fmt.Errorf("label row has width %d, vocabulary has %d labels", len(dst), len(v.labels))
	}
	clear(dst)
	for _, label := range labels {
		i, ok := v.index[label]
		if !ok {
			return fmt.Errorf("%w: %q", core.ErrUnknownLabel, label)
		}
		dst[i] = 1
	}
	return nil
}

// Dense expands a bit vector into a 0/1 row of width Size().
func (v *Vocabulary) Dense(bs *bitset.BitSet) []int32 {
	row := make([]int32, len(v.labels))
	for i, ok := bs.NextSet(0); ok && int(i) < len(row); i, ok = bs.NextSet(i + 1) {
		row[i] = 1
	}
	return row
}

// IsUnknownLabel reports whether err was caused by a label missing from the
// vocabulary.
func IsUnknownLabel(err error) bool {
	return errors.Is(err, core.ErrUnknownLabel)
}
