package dispatch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

// unsafeRuns matches every run of characters that may not appear in a
// saved filename. Each run collapses to a single underscore.
var unsafeRuns = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func sanitize(query string) string {
	return unsafeRuns.ReplaceAllString(query, "_")
}

// writeIfAbsent writes content under dir without ever overwriting an
// existing file: on collision it appends .1, .2, ... to the name until
// an unused one is found. Returns the path actually written.
func writeIfAbsent(dir, name string, content []byte) (string, error) {
	if dir == "" {
		dir = "."
	}

	candidate := name
	for i := 1; ; i++ {
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if _, werr := f.Write(content); werr != nil {
				_ = f.Close()
				return "", werr
			}
			if cerr := f.Close(); cerr != nil {
				return "", cerr
			}
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		candidate = fmt.Sprintf("%s.%d", name, i)
	}
}
