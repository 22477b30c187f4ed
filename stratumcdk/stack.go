package stratumcdk

import (
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/cockroachdb/errors"

	"github.com/strataops/stratum/internal/config"
	"github.com/strataops/stratum/internal/lambdafn"
)

// StackProps configures the Lambda stack.
type StackProps struct {
	// Config is the loaded project configuration.
	Config config.Config
	// LayerName selects the built layer; defaults to the configured name.
	LayerName string
}

// ValidateAssets checks that the artifacts the stack deploys from have
// been built. Both synth and the deploy command call this so a missing
// build fails with a clear message instead of a CDK asset error.
func ValidateAssets(cfg config.Config, layerName string) error {
	if layerName == "" {
		layerName = cfg.File.Layer.Name
	}

	layerDir := cfg.LayerDir(layerName)
	if _, err := os.Stat(layerDir); err != nil {
		return errors.Newf(
			"layer %q has not been built (%s missing) - run 'stratum layer build' first",
			layerName, layerDir,
		)
	}

	fns, err := lambdafn.Discover(cfg.LambdasDir())
	if err != nil {
		return err
	}
	if len(fns) == 0 {
		return errors.Newf("no lambda functions found in %s", cfg.LambdasDir())
	}

	return nil
}

// NewStack creates a stack with the shared layer and one function per
// lambda directory, each wired to the layer and a minimal logs policy.
func NewStack(scope constructs.Construct, id string, props StackProps) (awscdk.Stack, error) {
	if err := ValidateAssets(props.Config, props.LayerName); err != nil {
		return nil, err
	}

	layerName := props.LayerName
	if layerName == "" {
		layerName = props.Config.File.Layer.Name
	}

	runtime, err := runtimeFor(props.Config.File.PythonVersion)
	if err != nil {
		return nil, err
	}

	stack := awscdk.NewStack(scope, jsii.String(id), &awscdk.StackProps{
		Description: jsii.String("Lambda functions and shared layer built by stratum"),
	})

	layer := awslambda.NewLayerVersion(stack, jsii.String("SharedLibsLayer"), &awslambda.LayerVersionProps{
		Code:               awslambda.Code_FromAsset(jsii.String(props.Config.LayerDir(layerName)), nil),
		CompatibleRuntimes: &[]awslambda.Runtime{runtime},
		Description:        jsii.String("Shared libraries and third-party dependencies"),
		RemovalPolicy:      awscdk.RemovalPolicy_DESTROY,
	})

	fns, err := lambdafn.Discover(props.Config.LambdasDir())
	if err != nil {
		return nil, err
	}

	for _, fn := range fns {
		function := awslambda.NewFunction(stack, jsii.String(fn.LogicalID()), &awslambda.FunctionProps{
			Runtime:    runtime,
			Handler:    jsii.String(lambdafn.Handler),
			Code:       awslambda.Code_FromAsset(jsii.String(fn.Dir), nil),
			Layers:     &[]awslambda.ILayerVersion{layer},
			Timeout:    awscdk.Duration_Seconds(jsii.Number(30)),
			MemorySize: jsii.Number(128),
			Environment: &map[string]*string{
				"PYTHON_PATH": jsii.String("/opt/python"),
			},
		})

		function.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
			Actions:   jsii.Strings("logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"),
			Resources: jsii.Strings("*"),
		}))
	}

	return stack, nil
}

// runtimeFor maps the configured python version to a Lambda runtime.
func runtimeFor(version string) (awslambda.Runtime, error) {
	switch version {
	case "3.11":
		return awslambda.Runtime_PYTHON_3_11(), nil
	case "3.12":
		return awslambda.Runtime_PYTHON_3_12(), nil
	case "3.13":
		return awslambda.Runtime_PYTHON_3_13(), nil
	default:
		return nil, errors.Newf("unsupported python version %q", version)
	}
}
