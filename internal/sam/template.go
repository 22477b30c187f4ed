// Package sam renders the minimal SAM template used for local invocation
// of a single function. The template is built as typed values and
// serialized once; no string patching happens after serialization.
package sam

import (
	"github.com/cockroachdb/errors"
	"github.com/goccy/go-yaml"

	"github.com/strataops/stratum/internal/lambdafn"
)

const (
	formatVersion = "2010-09-09"
	transform     = "AWS::Serverless-2016-10-31"
	resourceType  = "AWS::Serverless::Function"
)

// Template is a minimal CloudFormation/SAM document.
type Template struct {
	AWSTemplateFormatVersion string              `yaml:"AWSTemplateFormatVersion"`
	Transform                string              `yaml:"Transform"`
	Resources                map[string]Resource `yaml:"Resources"`
}

// Resource is a single serverless function resource.
type Resource struct {
	Type       string     `yaml:"Type"`
	Properties Properties `yaml:"Properties"`
}

// Properties configures the function for sam local invoke.
type Properties struct {
	CodeURI       string   `yaml:"CodeUri"`
	Handler       string   `yaml:"Handler"`
	Runtime       string   `yaml:"Runtime"`
	Architectures []string `yaml:"Architectures"`
}

// NewTemplate builds the invocation template for one function.
func NewTemplate(fn lambdafn.Function, pythonVersion string) Template {
	return Template{
		AWSTemplateFormatVersion: formatVersion,
		Transform:                transform,
		Resources: map[string]Resource{
			fn.LogicalID(): {
				Type: resourceType,
				Properties: Properties{
					CodeURI:       fn.Dir,
					Handler:       lambdafn.Handler,
					Runtime:       "python" + pythonVersion,
					Architectures: []string{"x86_64"},
				},
			},
		},
	}
}

// Marshal serializes the template to YAML.
func (t Template) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal SAM template")
	}
	return data, nil
}
