// SPDX-License-Identifier: MIT
package validate

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLicenseHeaders_ConsistentPerPackage keeps every Go file of a package on
// the same license header.
func TestLicenseHeaders_ConsistentPerPackage(t *testing.T) {
	root := findProjectRoot(t)
	headers := map[string]map[string][]string{} // dir -> first line -> files

	for _, top := range []string{"cmd", "internal"} {
		err := filepath.WalkDir(filepath.Join(root, top), func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") {
				return err
			}
			line, err := firstLine(path)
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			dir := filepath.Dir(rel)
			if headers[dir] == nil {
				headers[dir] = map[string][]string{}
			}
			headers[dir][line] = append(headers[dir][line], filepath.Base(rel))
			return nil
		})
		require.NoError(t, err)
	}
	require.NotEmpty(t, headers)

	for dir, byLine := range headers {
		assert.Len(t, byLine, 1, "%s mixes license headers: %v", dir, byLine)
		for line, files := range byLine {
			assert.True(t,
				strings.HasPrefix(line, "// Copyright (c) 2025 ManuGH") || line == "// SPDX-License-Identifier: MIT",
				"%s: %v start with %q", dir, files, line)
		}
	}
}

func firstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	s.Scan()
	return s.Text(), s.Err()
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("no go.mod above the working directory")
		}
		dir = parent
	}
}
