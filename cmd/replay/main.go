// Package main is the entry point for the phonepilot-replay CLI, a
// standalone viewer for recorded run files.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openclaw/phonepilot/internal/replay"
)

var version = "dev"

func main() {
	args := os.Args[1:]

	verbose := false
	noPager := false
	follow := false
	var paths []string

	for _, arg := range args {
		switch {
		case arg == "-v" || arg == "--verbose":
			verbose = true
		case arg == "--no-pager":
			noPager = true
		case arg == "-f" || arg == "--follow":
			follow = true
		case arg == "-h" || arg == "--help":
			printUsage()
			os.Exit(0)
		case arg == "--version":
			fmt.Printf("phonepilot-replay version %s\n", version)
			os.Exit(0)
		case !strings.HasPrefix(arg, "-"):
			paths = append(paths, arg)
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", arg)
			os.Exit(1)
		}
	}

	if len(paths) == 0 {
		printUsage()
		os.Exit(1)
	}
	if follow && len(paths) != 1 {
		fmt.Fprintln(os.Stderr, "error: --follow works with a single run file")
		os.Exit(1)
	}

	for _, path := range paths {
		if err := show(path, verbose, noPager, follow); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

func render(path string, verbose bool) (string, error) {
	var buf bytes.Buffer
	if err := replay.New(&buf, verbose).ReplayFile(path); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func show(path string, verbose, noPager, follow bool) error {
	if noPager {
		return replay.New(os.Stdout, verbose).ReplayFile(path)
	}

	title := strings.TrimSuffix(filepath.Base(path), ".json")
	pager := replay.NewPager("run " + title)
	if follow {
		return pager.RunLive(path, func() (string, error) {
			return render(path, verbose)
		})
	}
	content, err := render(path, verbose)
	if err != nil {
		return err
	}
	return pager.Run(content)
}

func printUsage() {
	fmt.Println(`Usage: phonepilot-replay [flags] <run.json> [more runs...]

Flags:
  -v, --verbose   Include raw model replies and command payloads
  -f, --follow    Watch the file and refresh as the run progresses
  --no-pager      Print to stdout instead of the interactive pager
  --version       Print version`)
}
