package config

import (
	"bufio"
	"strings"

	"github.com/spf13/afero"
)

// ReadIDs reads a newline-delimited id list, skipping blank lines.
// Order is preserved; the file is expected to be sorted the way the
// source database orders identifiers.
func ReadIDs(fs afero.Fs, path string) ([]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ids := make([]string, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}
