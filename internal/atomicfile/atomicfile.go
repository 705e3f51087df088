// Package atomicfile writes files through a temporary file and a rename so
// readers never observe a partially written output.
package atomicfile

import (
	"os"
	"path/filepath"
)

// TempPattern is the name pattern of in-progress files.
const TempPattern = ".upscale-*.tmp"

// Write writes data to path. On any error the temporary file is removed and
// path is left untouched.
func Write(path string, data []byte, perm os.FileMode) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), TempPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Chmod(perm); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
