package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/funvibe/devplan/internal/pipeline"
	"github.com/funvibe/devplan/internal/scope"
)

const usageText = `devplan - device placement inference for tensor programs

Usage:
  devplan [options] <program.yaml>

Options:
  -config <file>   device configuration (default: single cpu target)
  -dump            print the full domain dump after planning
  -verbose         enable debug logging of the planning run
  -help            show this help
`

const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

func usage() {
	fmt.Print(usageText)
}

func main() {
	var (
		configPath  string
		programPath string
		dump        bool
		verbose     bool
	)

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "-help", "--help", "-h":
			usage()
			return
		case "-config", "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: -config needs a file argument")
				os.Exit(2)
			}
			i++
			configPath = args[i]
		case "-dump", "--dump":
			dump = true
		case "-verbose", "--verbose":
			verbose = true
		default:
			if programPath != "" {
				fmt.Fprintf(os.Stderr, "Error: unexpected argument %q\n", arg)
				os.Exit(2)
			}
			programPath = arg
		}
	}
	if programPath == "" {
		usage()
		os.Exit(2)
	}

	logger := zap.NewNop()
	if verbose {
		devLogger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: setting up logging: %s\n", err)
			os.Exit(1)
		}
		defer devLogger.Sync()
		logger = devLogger
	}

	ctx := pipeline.NewContext(programPath)
	ctx.ConfigPath = configPath
	ctx.Logger = logger

	ctx = pipeline.New(
		&pipeline.ConfigProcessor{},
		&pipeline.ProgramProcessor{},
		&pipeline.PlanProcessor{},
	).Run(ctx)

	if ctx.Failed() {
		fmt.Fprintln(os.Stderr, "Planning failed with errors:")
		for _, err := range ctx.Errors {
			fmt.Fprintf(os.Stderr, "- %s\n", err)
		}
		if dump && ctx.DomainDump != "" {
			fmt.Fprintln(os.Stderr, "\nDomain dump:")
			fmt.Fprint(os.Stderr, ctx.DomainDump)
		}
		os.Exit(1)
	}

	printPlacements(ctx)
	if dump {
		fmt.Println()
		fmt.Println("Domain dump:")
		fmt.Print(ctx.DomainDump)
	}
}

func printPlacements(ctx *pipeline.Context) {
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	for _, name := range ctx.Module.SortedNames() {
		fn := ctx.Module.Functions[name]
		fp := ctx.Plan.Functions[name]
		fmt.Printf("%s:\n", name)
		for i, param := range fn.Params {
			fmt.Printf("  param %-12s %s\n", param.Name, colorScope(fp.Params[i], isTTY))
		}
		fmt.Printf("  result %s\n", colorScope(fp.Result, isTTY))
	}
}

func colorScope(sc scope.Scope, isTTY bool) string {
	if !isTTY {
		return sc.String()
	}
	if sc.IsFullyConstrained() {
		return colorGreen + sc.String() + colorReset
	}
	return colorCyan + sc.String() + colorReset
}
