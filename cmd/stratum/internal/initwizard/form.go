package initwizard

import (
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/cockroachdb/errors"
	"github.com/strataops/stratum/internal/manifest"
)

type FormBuilder interface {
	Build(defaultName string, result *Result) *huh.Form
}

type formBuilder struct{}

func NewFormBuilder() FormBuilder {
	return &formBuilder{}
}

func (b *formBuilder) Build(defaultName string, result *Result) *huh.Form {
	*result = DefaultResult(defaultName)
	return huh.NewForm(
		huh.NewGroup(
			b.projectNameInput(&result.ProjectName),
			b.pythonVersionSelect(&result.PythonVersion),
			b.lambdaNameInput(&result.LambdaName),
			b.libNameInput(&result.LibName),
		),
	)
}

func (b *formBuilder) projectNameInput(value *string) *huh.Input {
	return huh.NewInput().
		Title("Project name").
		Description("Used in the generated configuration file").
		Value(value).
		Validate(ValidateProjectName)
}

func (b *formBuilder) pythonVersionSelect(value *string) *huh.Select[string] {
	return huh.NewSelect[string]().
		Title("Python version").
		Description("Runtime version for Lambda functions and layers").
		Options(huh.NewOptions("3.11", "3.12", "3.13")...).
		Value(value)
}

func (b *formBuilder) lambdaNameInput(value *string) *huh.Input {
	return huh.NewInput().
		Title("First Lambda function").
		Description("Name of the initial function to scaffold").
		Value(value).
		Validate(ValidateFunctionName)
}

func (b *formBuilder) libNameInput(value *string) *huh.Input {
	return huh.NewInput().
		Title("First shared library").
		Description("Name of the initial library to scaffold").
		Value(value).
		Validate(ValidateLibraryName)
}

func ValidateProjectName(s string) error {
	if s == "" {
		return errors.New("project name is required")
	}
	if len(s) > 40 {
		return errors.New("project name must be 40 characters or less")
	}
	for _, c := range s {
		if !IsValidNameChar(c) {
			return errors.Newf("invalid character %q: use lowercase letters, numbers, and hyphens only", c)
		}
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return errors.New("project name cannot start or end with a hyphen")
	}
	return nil
}

func ValidateFunctionName(s string) error {
	if s == "" {
		return errors.New("function name is required")
	}
	if s[0] < 'a' || s[0] > 'z' {
		return errors.New("function name must start with a lowercase letter")
	}
	for _, c := range s {
		if !IsValidIdentChar(c) {
			return errors.Newf("invalid character %q: use lowercase letters, numbers, and underscores only", c)
		}
	}
	return nil
}

func ValidateLibraryName(s string) error {
	if !strings.HasPrefix(s, manifest.DefaultLocalPrefix) {
		return errors.Newf("library name must start with %q", manifest.DefaultLocalPrefix)
	}
	rest := strings.TrimPrefix(s, manifest.DefaultLocalPrefix)
	if rest == "" {
		return errors.New("library name needs a part after the prefix")
	}
	for _, c := range rest {
		if !IsValidIdentChar(c) {
			return errors.Newf("invalid character %q: use lowercase letters, numbers, and underscores only", c)
		}
	}
	return nil
}

func IsValidNameChar(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-'
}

func IsValidIdentChar(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_'
}
