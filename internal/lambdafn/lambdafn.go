// Package lambdafn discovers Lambda functions in the lambdas root and
// builds their deployment packages.
package lambdafn

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/iancoleman/strcase"
)

// HandlerFile is the entry point file every function directory must contain.
const HandlerFile = "app.py"

// Handler is the handler reference passed to the Lambda runtime.
const Handler = "app.handler"

// Function describes one Lambda function directory.
type Function struct {
	Name string
	Dir  string
}

// LogicalID returns the CloudFormation-safe logical resource id
// for the function, e.g. "data_processor" -> "DataProcessorFunction".
func (f Function) LogicalID() string {
	return strcase.ToCamel(f.Name) + "Function"
}

// EventPath returns the function's default event file, or "" when absent.
func (f Function) EventPath() string {
	path := filepath.Join(f.Dir, "event.json")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Discover lists every function directory under lambdasDir, in directory
// listing order. A directory qualifies when it contains app.py.
func Discover(lambdasDir string) ([]Function, error) {
	entries, err := os.ReadDir(lambdasDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to list functions in %s", lambdasDir)
	}

	var fns []Function
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(lambdasDir, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, HandlerFile)); err != nil {
			continue
		}
		fns = append(fns, Function{Name: entry.Name(), Dir: dir})
	}

	return fns, nil
}

// Find returns the named function or an error when it does not exist.
func Find(lambdasDir, name string) (Function, error) {
	fns, err := Discover(lambdasDir)
	if err != nil {
		return Function{}, err
	}
	for _, fn := range fns {
		if fn.Name == name {
			return fn, nil
		}
	}
	return Function{}, errors.Newf("lambda function %q not found in %s", name, lambdasDir)
}

// Package copies the function's python sources into
// <outputDir>/lambdas/<name>/ and writes a flat deployment zip alongside
// them. It returns the output directory.
func Package(fn Function, outputDir string, logger *log.Logger) (string, error) {
	outDir := filepath.Join(outputDir, "lambdas", fn.Name)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create function output directory")
	}

	sources, err := filepath.Glob(filepath.Join(fn.Dir, "*.py"))
	if err != nil {
		return "", err
	}

	zipPath := filepath.Join(outDir, fn.Name+".zip")
	zf, err := os.Create(zipPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to create function archive")
	}
	defer zf.Close()

	zw := zip.NewWriter(zf)
	for _, src := range sources {
		if err := copyFile(src, filepath.Join(outDir, filepath.Base(src))); err != nil {
			return "", err
		}
		if err := addToZip(zw, src, filepath.Base(src)); err != nil {
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", errors.Wrap(err, "failed to finalize function archive")
	}
	if err := zf.Close(); err != nil {
		return "", err
	}

	logger.Info("function package created", "function", fn.Name, "zip", zipPath)
	return outDir, nil
}

func addToZip(zw *zip.Writer, path, name string) error {
	w, err := zw.Create(name)
	if err != nil {
		return errors.Wrapf(err, "failed to add %s to archive", name)
	}

	in, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer in.Close()

	_, err = io.Copy(w, in)
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dst)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "failed to copy %s", src)
	}

	return out.Close()
}
