// The purpose of this tool is to aggregate the downstream builds triggered by
// a nightly pipeline, record their results exactly once, and email a status
// report with per-family history.
package main

import (
	goflag "flag"
	"os"

	"github.com/spf13/pflag"

	"github.com/enclave-ci/nightly-reporter/pkg/nightlyreport"
)

func main() {
	cmd := nightlyreport.NewNightlyReportCommand()
	pflag.CommandLine.AddGoFlagSet(goflag.CommandLine)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
