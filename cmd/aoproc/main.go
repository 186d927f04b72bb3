package main

import (
	"fmt"
	"io"
	"os"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "serve":
		return runServe(rest, stderr)
	case "handle":
		return runHandle(rest, stdin, stdout, stderr)
	case "state":
		return runState(rest, stdout, stderr)
	case "demo":
		return runDemo(rest, stdout, stderr)
	case "console":
		return runConsole(rest, stderr)
	case "config":
		return runConfigNoun(rest, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "aoproc version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `aoproc - key-value AO process with an HTTP host

Usage:
  aoproc <command> [flags]

Commands:
  serve [--config PATH]          Run the HTTP host until SIGINT/SIGTERM
  handle [--from X] [JSON|-]     Run one message through a fresh process
  state [--url URL]              Print a running host's state and fingerprint
  demo                           Walk through every action on a fresh process
  console [--url URL]            Interactive console (local unless --url)
  config check [--config PATH]   Validate configuration
  version                        Show version information
  help                           Show this help message

Config discovery: --config, $AOPROC_CONFIG, ./config.yaml, built-in defaults.
`)
}

func isHelpToken(s string) bool {
	return s == "help" || s == "--help" || s == "-h"
}
