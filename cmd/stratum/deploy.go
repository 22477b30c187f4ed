package main

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/strataops/stratum/internal/cmdexec"
	"github.com/strataops/stratum/internal/config"
	"github.com/strataops/stratum/stratumcdk"
	"github.com/urfave/cli/v3"
)

func deployCmd() *cli.Command {
	return &cli.Command{
		Name:  "deploy",
		Usage: "Deploy the functions and layer through CDK",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "profile",
				Usage: "AWS profile to deploy with",
			},
			&cli.StringFlag{
				Name:  "region",
				Usage: "AWS region to deploy to",
			},
			&cli.StringFlag{
				Name:  "stack-name",
				Usage: "CloudFormation stack name",
				Value: "LambdaStack",
			},
		},
		Action: config.RunWithConfig(runDeploy),
	}
}

type deployOptions struct {
	Profile   string
	Region    string
	StackName string
	Output    io.Writer
}

func runDeploy(ctx context.Context, cmd *cli.Command, cfg config.Config) error {
	return doDeploy(ctx, cfg, deployOptions{
		Profile:   cmd.String("profile"),
		Region:    cmd.String("region"),
		StackName: cmd.String("stack-name"),
		Output:    os.Stdout,
	})
}

func doDeploy(ctx context.Context, cfg config.Config, opts deployOptions) error {
	if !cmdexec.Available("cdk") {
		return errors.New("cdk not found on PATH: install the AWS CDK CLI")
	}
	if !cmdexec.Available("stratum-synth") {
		return errors.New("stratum-synth not found on PATH: install it alongside stratum")
	}

	// Fail before shelling out when the assets are missing.
	if err := stratumcdk.ValidateAssets(cfg, cfg.File.Layer.Name); err != nil {
		return err
	}

	args := []string{"deploy", "--app", "stratum-synth", "--require-approval", "never"}
	if opts.Profile != "" {
		args = append(args, "--profile", opts.Profile)
	}

	exec := cmdexec.New(cfg.ProjectDir).
		WithEnv("STRATUM_STACK_NAME", opts.StackName).
		WithOutput(opts.Output, opts.Output)
	if opts.Region != "" {
		exec = exec.WithEnv("AWS_REGION", opts.Region)
	}

	return exec.Run(ctx, "cdk", args...)
}
