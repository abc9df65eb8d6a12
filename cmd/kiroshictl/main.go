// kiroshictl drives the local image-generation backend: it supervises the
// backend container, runs generation sessions and serves a status surface.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "kiroshictl: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	err := dispatch(args, out)
	if errors.Is(err, errHelp) {
		return nil
	}
	return err
}

func dispatch(args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return errUsage
	}
	switch args[0] {
	case "serve":
		return runServe(args[1:], out)
	case "generate":
		return runGenerate(args[1:], out)
	case "ping":
		return runPing(args[1:], out)
	case "models":
		return runModels(args[1:], out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: kiroshictl <command> [flags]

commands:
  serve      start the backend and serve /health, /generations, /models, /metrics
  generate   run one generation and write the final image as PNG
  ping       check that the backend answers
  models     list model weights and their prompt templates

run "kiroshictl <command> --help" for command flags
`)
}
