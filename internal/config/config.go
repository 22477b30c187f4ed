// Package config loads and locates the project configuration file.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

const FileName = ".stratum.yml"

// File is the on-disk configuration.
type File struct {
	Version       string `yaml:"version" validate:"required,oneof=1"`
	PythonVersion string `yaml:"python_version" validate:"required,oneof=3.11 3.12 3.13"`
	LambdasDir    string `yaml:"lambdas_dir" validate:"required"`
	LibsDir       string `yaml:"libs_dir" validate:"required"`
	OutputDir     string `yaml:"output_dir" validate:"required"`
	Layer         Layer  `yaml:"layer"`
}

// Layer configures the combined layer build.
type Layer struct {
	Name string `yaml:"name" validate:"required"`
	// LocalPrefix marks dependency names that refer to intra-repo
	// libraries and must never be sent to the package installer.
	LocalPrefix string `yaml:"local_prefix" validate:"required"`
}

func Default() File {
	return File{
		Version:       "1",
		PythonVersion: "3.13",
		LambdasDir:    "lambdas",
		LibsDir:       "libs",
		OutputDir:     "dist",
		Layer: Layer{
			Name:        "combined",
			LocalPrefix: "lib_",
		},
	}
}

type Loader interface {
	Load(path string) (File, error)
}

type Writer interface {
	Write(w io.Writer, file File) error
}

type Finder interface {
	Find(startDir string) (file File, projectDir string, err error)
}

type yamlLoader struct {
	validate *validator.Validate
}

func NewLoader() Loader {
	return &yamlLoader{
		validate: validator.New(),
	}
}

func (l *yamlLoader) Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrap(err, "failed to read config file")
	}

	dec := yaml.NewDecoder(
		bytes.NewReader(data),
		yaml.Validator(l.validate),
		yaml.Strict(),
	)

	var file File
	if err := dec.Decode(&file); err != nil {
		return File{}, errors.Wrap(err, "failed to parse config file")
	}

	return file, nil
}

type yamlWriter struct{}

func NewWriter() Writer {
	return &yamlWriter{}
}

func (w *yamlWriter) Write(wr io.Writer, file File) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if _, err := wr.Write(data); err != nil {
		return errors.Wrap(err, "failed to write config")
	}

	return nil
}

type finder struct {
	loader Loader
}

func NewFinder(loader Loader) Finder {
	return &finder{loader: loader}
}

func (f *finder) Find(startDir string) (File, string, error) {
	dir := startDir
	for {
		configPath := filepath.Join(dir, FileName)
		if _, err := os.Stat(configPath); err == nil {
			file, err := f.loader.Load(configPath)
			if err != nil {
				return File{}, "", err
			}
			return file, dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return File{}, "", errors.Newf(
				"config file %s not found (searched from %s to root)",
				FileName, startDir,
			)
		}
		dir = parent
	}
}

// WriteToFile writes the config to <dir>/.stratum.yml.
func WriteToFile(dir string, file File, w Writer) error {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to create config file")
	}
	defer f.Close()

	return w.Write(f, file)
}
