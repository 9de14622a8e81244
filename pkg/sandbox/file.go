package sandbox

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"taskrunner/pkg/taskerr"
)

// Stat resolves candidate and stats it. A missing file is KindNotFound.
func (s *Sandbox) Stat(candidate string) (string, fs.FileInfo, error) {
	p, err := s.Resolve(candidate)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if isMissing(err) {
			return p, nil, taskerr.NotFound("%s does not exist", s.Rel(p))
		}
		return p, nil, taskerr.Wrap(taskerr.KindHandlerExecution, err, "cannot stat %s", s.Rel(p))
	}
	return p, info, nil
}

// Open resolves candidate and opens it for reading.
func (s *Sandbox) Open(candidate string) (*os.File, error) {
	p, info, err := s.Stat(candidate)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, taskerr.NotFound("%s is a directory", s.Rel(p))
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindHandlerExecution, err, "cannot open %s", s.Rel(p))
	}
	return f, nil
}

// ReadFile resolves candidate and returns its full content.
func (s *Sandbox) ReadFile(candidate string) ([]byte, error) {
	p, info, err := s.Stat(candidate)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, taskerr.NotFound("%s is a directory", s.Rel(p))
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindHandlerExecution, err, "cannot read %s", s.Rel(p))
	}
	return data, nil
}

// WriteFile replaces candidate with data atomically: the bytes go to a temp
// file next to the target, which is renamed over it only after a complete
// write. A failed write leaves the previous content untouched.
func (s *Sandbox) WriteFile(candidate string, data []byte) (string, error) {
	p, err := s.Resolve(candidate)
	if err != nil {
		return "", err
	}
	if p == s.root {
		return "", taskerr.PathViolation("cannot write to the sandbox root itself")
	}
	if err := writeAtomic(p, data); err != nil {
		return "", taskerr.Wrap(taskerr.KindHandlerExecution, err, "cannot write %s", s.Rel(p))
	}
	return p, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
