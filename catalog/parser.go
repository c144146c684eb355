package catalog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/dataprep/core"
)

// DefaultReportEvery is how often, in rows, the parser logs progress.
const DefaultReportEvery = 100000

const maxLineSize = 16 * 1024 * 1024

type parseOptions struct {
	keyFunc     KeyFunc
	reportEvery int
	logger      *slog.Logger
}

// Option configures Parse and ParseReader.
type Option func(*parseOptions)

// WithKeyFunc sets the key derivation. The default is Identity.
func WithKeyFunc(fn KeyFunc) Option {
	return func(o *parseOptions) {
		if fn != nil {
			o.keyFunc = fn
		}
	}
}

// WithReportEvery sets the progress logging interval. Zero disables it.
func WithReportEvery(n int) Option {
	return func(o *parseOptions) {
		o.reportEvery = n
	}
}

// WithLogger sets the logger used for progress diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *parseOptions) {
		o.logger = logger
	}
}

// Parse reads the record source at path.
func Parse(path string, opts ...Option) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open record source: %w", core.ErrIO, err)
	}
	defer f.Close()
	return ParseReader(f, opts...)
}

// ParseReader reads records from r. Blank lines are skipped, surrounding
// whitespace is trimmed from each line, empty category tokens are ignored
// and fields after the third are ignored.
func ParseReader(r io.Reader, opts ...Option) (*Index, error) {
	o := parseOptions{
		keyFunc:     Identity,
		reportEvery: DefaultReportEvery,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("component", "catalog")

	start := time.Now()
	index := newIndex()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		rec, err := parseRow(text, o.keyFunc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		index.put(rec)

		if o.reportEvery > 0 && line%o.reportEvery == 0 {
			logger.Debug("parsing records", "line", line, "id", rec.ID, "labels", len(rec.Labels))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read record source: %w", core.ErrIO, err)
	}

	logger.Info("parsed record source", "records", index.Len(), "lines", line, "duration", time.Since(start))
	return index, nil
}

func parseRow(line string, keyFunc KeyFunc) (*core.Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: expected 3 tab-separated fields, got %d", ErrMalformedRow, len(fields))
	}
	if fields[0] == "" {
		return nil, ErrEmptyID
	}

	var categories []string
	for _, token := range strings.Split(fields[1], ",") {
		if token = strings.TrimSpace(token); token != "" {
			categories = append(categories, token)
		}
	}

	return &core.Record{
		ID:       keyFunc(fields[0]),
		SourceID: fields[0],
		Text:     fields[2],
		Labels:   categories,
	}, nil
}
