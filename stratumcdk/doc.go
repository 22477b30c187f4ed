// Package stratumcdk defines the CDK stack that deploys the built Lambda
// functions together with the shared layer. The stack reads the same
// project layout the stratum CLI builds into: one directory per function
// under the lambdas root, and the assembled layer under the output
// directory. cmd/stratum-synth is the CDK app entry point.
package stratumcdk
