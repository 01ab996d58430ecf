package file

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
	"github.com/google/uuid"
)

// readJSON decodes path into target. It reports false when the file does not
// exist.
func readJSON(path string, target any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, ioError(err, "file: read document", path)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, core.WrapError(err, goerrors.CategoryInternal, core.ErrorInternal, "file: decode document", map[string]any{
			core.MetadataPath: path,
		})
	}
	return true, nil
}

// writeJSON replaces path with the encoded value through a temp file and a
// rename.
func writeJSON(path string, value any, perm os.FileMode) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return core.WrapError(err, goerrors.CategoryInternal, core.ErrorInternal, "file: encode document", map[string]any{
			core.MetadataPath: path,
		})
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioError(err, "file: create document dir", dir)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, append(data, '\n'), perm); err != nil {
		_ = os.Remove(tmp)
		return ioError(err, "file: write document", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return ioError(err, "file: replace document", path)
	}
	return nil
}

func ioError(err error, message string, path string) error {
	return core.WrapError(err, goerrors.CategoryInternal, core.ErrorFetchIO, message, map[string]any{
		core.MetadataPath: path,
	})
}
