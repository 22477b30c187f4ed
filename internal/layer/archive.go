package layer

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// writeArchive zips every file under root into zipPath. Entry paths are
// relative to the parent of root, so the runtime-required directory name
// (e.g. "python/") is preserved inside the archive.
func writeArchive(zipPath, root string) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create archive %s", zipPath)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	parent := filepath.Dir(root)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return errors.Wrapf(err, "failed to add %s to archive", rel)
		}

		in, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "failed to open %s", path)
		}
		defer in.Close()

		_, err = io.Copy(w, in)
		return err
	})
	if err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "failed to finalize archive")
	}

	return f.Close()
}
