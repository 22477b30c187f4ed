// Command stratum-synth is the CDK app entry point. 'stratum deploy'
// invokes the cdk CLI with this program as the app; it can also be run
// directly via 'cdk synth --app "go run ./cmd/stratum-synth"'.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"

	"github.com/strataops/stratum/internal/config"
	"github.com/strataops/stratum/stratumcdk"
)

func main() {
	defer jsii.Close()

	_, cfg, err := config.Ensure(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := awscdk.NewApp(nil)

	stackName := os.Getenv("STRATUM_STACK_NAME")
	if stackName == "" {
		stackName = "LambdaStack"
	}

	if _, err := stratumcdk.NewStack(app, stackName, stratumcdk.StackProps{Config: cfg}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app.Synth(nil)
}
