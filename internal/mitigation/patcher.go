// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mitigation

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// SurfacePatcher finds and sanitizes injectable request-parameter reads in
// an application tree.
type SurfacePatcher interface {
	// Scan lists files that still contain unsanitized reads. A missing
	// directory yields no files and no error.
	Scan(dir string) ([]string, error)
	// Patch backs up and rewrites the files Scan reports.
	Patch(dir string) ([]string, error)
}

// Matches $_GET[...] and $_POST[...], optionally already wrapped.
var inputRead = regexp.MustCompile(`(htmlspecialchars\()?\$_(GET|POST)\[([^\]]+)\]`)

// FSPatcher rewrites PHP sources on an afero filesystem. Each rewritten file
// is first copied to <file>.bak unless a backup already exists.
type FSPatcher struct {
	Fs         afero.Fs
	Extensions []string
}

// NewFSPatcher returns a patcher for the given file extensions (".php" if none).
func NewFSPatcher(fs afero.Fs, extensions []string) *FSPatcher {
	if len(extensions) == 0 {
		extensions = []string{".php"}
	}
	return &FSPatcher{Fs: fs, Extensions: extensions}
}

// Scan implements SurfacePatcher.
func (p *FSPatcher) Scan(dir string) ([]string, error) {
	if ok, _ := afero.DirExists(p.Fs, dir); !ok {
		return nil, nil
	}

	var vulnerable []string
	err := afero.Walk(p.Fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !p.matches(path) {
			return nil
		}
		data, err := afero.ReadFile(p.Fs, path)
		if err != nil {
			return err
		}
		if hasRawRead(string(data)) {
			vulnerable = append(vulnerable, path)
		}
		return nil
	})
	sort.Strings(vulnerable)
	return vulnerable, err
}

// Patch implements SurfacePatcher.
func (p *FSPatcher) Patch(dir string) ([]string, error) {
	files, err := p.Scan(dir)
	if err != nil {
		return nil, err
	}

	var patched []string
	for _, path := range files {
		data, err := afero.ReadFile(p.Fs, path)
		if err != nil {
			return patched, err
		}
		info, err := p.Fs.Stat(path)
		if err != nil {
			return patched, err
		}

		backup := path + ".bak"
		if ok, _ := afero.Exists(p.Fs, backup); !ok {
			if err := afero.WriteFile(p.Fs, backup, data, info.Mode().Perm()); err != nil {
				return patched, err
			}
		}
		if err := afero.WriteFile(p.Fs, path, []byte(sanitize(string(data))), info.Mode().Perm()); err != nil {
			return patched, err
		}
		patched = append(patched, path)
	}
	return patched, nil
}

func (p *FSPatcher) matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range p.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func hasRawRead(src string) bool {
	for _, m := range inputRead.FindAllStringSubmatch(src, -1) {
		if m[1] == "" {
			return true
		}
	}
	return false
}

// sanitize wraps every raw read in htmlspecialchars. Already wrapped reads are
// left alone, so the rewrite is idempotent.
func sanitize(src string) string {
	return inputRead.ReplaceAllStringFunc(src, func(m string) string {
		if strings.HasPrefix(m, "htmlspecialchars(") {
			return m
		}
		return "htmlspecialchars(" + m + ")"
	})
}
