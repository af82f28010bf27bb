package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fmueller/voxserve/internal/api"
	"github.com/fmueller/voxserve/internal/cli"
	"github.com/spf13/cobra"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "voxserve:", err)
		if isUsageError(err) {
			fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", helpHintTarget(cmd, os.Args[1:]))
			os.Exit(exitUsage)
		}
		os.Exit(exitFailure)
	}
}

var usagePatterns = []string{
	"unknown command",
	"unknown flag",
	"unknown shorthand flag",
	"invalid argument",
	"flag needs an argument",
	"accepts ",
	"requires at least",
	"requires at most",
	"requires between",
	"required flag",
}

// isUsageError recognizes cobra and pflag parse errors, which carry no type.
func isUsageError(err error) bool {
	if err == nil || errors.Is(err, api.ErrInvalidArgument) {
		return false
	}

	message := strings.ToLower(err.Error())
	for _, pattern := range usagePatterns {
		if strings.Contains(message, pattern) {
			return true
		}
	}
	return false
}

func helpHintTarget(root *cobra.Command, args []string) string {
	if root == nil {
		return "voxserve"
	}

	target := root.CommandPath()
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return target
	}

	if found, _, err := root.Find(args); err == nil && found != nil {
		return found.CommandPath()
	}
	return target
}
