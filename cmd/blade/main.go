package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	exitCode := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode)
}

// cli carries the streams and persistent flags shared by all commands.
type cli struct {
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	verbose bool
}

// exitError attaches an exit code to a command failure.
type exitError struct {
	code int
	msg  string
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %v", e.msg, e.err)
}

func (e *exitError) Unwrap() error {
	return e.err
}

func fail(code int, msg string, err error) error {
	return &exitError{code: code, msg: msg, err: err}
}

// run is the main entry point for the CLI, separated for testing
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitCodeSuccess
	}
	newPrinter(stderr).printError(err)

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	// flag parsing, argument counts and unknown commands
	return ExitCodeUsageError
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           CLIName,
		Short:         HelpRootShort,
		Long:          CLIDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&c.verbose, FlagVerbose, false, HelpFlagVerbose)

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.compileCommand())
	root.AddCommand(c.traceCommand())
	root.AddCommand(c.versionCommand())
	return root
}

// logger returns a development logger on stderr when --verbose is set.
func (c *cli) logger() (*zap.Logger, error) {
	if !c.verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fail(ExitCodeError, ErrMsgLoggerFailed, err)
	}
	return logger, nil
}
