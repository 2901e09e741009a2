// Package query resolves the list of raw queries for a run and applies
// prepend/append decoration.
package query

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// StdinSentinel selects standard input as the query source.
const StdinSentinel = "-"

var (
	// ErrNoSource means neither an explicit list nor a text source was given.
	ErrNoSource = errors.New("no query source supplied")

	// ErrEmpty means the source was given but yielded zero queries.
	ErrEmpty = errors.New("query source is empty")
)

// Resolve produces the ordered query list from an explicit list or a
// text source ("-" reads stdin). Exactly one source must be in use;
// callers validate mutual exclusion before calling. Blank lines in a
// text source, including the trailing one from a final newline, are
// dropped rather than treated as empty queries.
func Resolve(queries []string, from string, stdin io.Reader) ([]string, error) {
	if len(queries) > 0 {
		return queries, nil
	}
	if from == "" {
		return nil, ErrNoSource
	}

	content, err := readSource(from, stdin)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		out = append(out, line)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, from)
	}
	return out, nil
}

func readSource(from string, stdin io.Reader) (string, error) {
	if from == StdinSentinel {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(from)
	if err != nil {
		return "", fmt.Errorf("read query file: %w", err)
	}
	return string(data), nil
}

// Decorate wraps a raw query with the configured prepend/append text.
func Decorate(raw, prepend, append string) string {
	return prepend + raw + append
}
