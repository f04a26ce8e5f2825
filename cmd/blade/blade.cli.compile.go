package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/itsatony/go-blade"
	"github.com/spf13/cobra"
)

type compileFlags struct {
	engineFlags
	data string
}

func (c *cli) compileCommand() *cobra.Command {
	flags := &compileFlags{}
	cmd := &cobra.Command{
		Use:   CmdNameCompile + " <file>",
		Short: HelpCompileShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCompile(cmd, flags, args[0])
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.data, FlagData, FlagDataShort, "", HelpFlagData)
	return cmd
}

// runCompile prints the compiled document. Includes and components resolve
// against --views; --data supplies the bindings components are expanded with.
func (c *cli) runCompile(cmd *cobra.Command, flags *compileFlags, file string) error {
	source, err := readInput(file, c.stdin)
	if err != nil {
		return fail(ExitCodeInputError, ErrMsgReadFileFailed, err)
	}
	bindings, err := loadBindings(flags.data, "", c.stdin)
	if err != nil {
		return err
	}
	logger, err := c.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	engine, err := flags.engine(logger)
	if err != nil {
		return err
	}

	path := file
	if file == InputSourceStdin {
		path = ""
	}
	compiled, err := engine.Compile(cmd.Context(), string(source), blade.WithPath(path), blade.WithBindings(bindings))
	if err != nil {
		return fail(ExitCodeRenderError, ErrMsgCompileFailed, err)
	}
	if _, err := fmt.Fprint(c.stdout, compiled); err != nil {
		return fail(ExitCodeError, ErrMsgWriteOutputFailed, err)
	}
	return nil
}

type traceFlags struct {
	format string
}

// locationOutput is the JSON form of a resolved line.
type locationOutput struct {
	Path     string        `json:"path"`
	Line     int           `json:"line"`
	Physical int           `json:"physical"`
	Frames   []blade.Frame `json:"frames,omitempty"`
}

func (c *cli) traceCommand() *cobra.Command {
	flags := &traceFlags{}
	cmd := &cobra.Command{
		Use:   CmdNameTrace + " <file> <line>",
		Short: HelpTraceShort,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTrace(flags, args[0], args[1])
		},
	}
	cmd.Flags().StringVarP(&flags.format, FlagFormat, FlagFormatShort, FlagDefaultFormat, HelpFlagFormat)
	return cmd
}

func (c *cli) runTrace(flags *traceFlags, file, lineArg string) error {
	if flags.format != OutputFormatText && flags.format != OutputFormatJSON {
		return fail(ExitCodeUsageError, ErrMsgInvalidFormat, nil)
	}
	line, err := strconv.Atoi(lineArg)
	if err != nil || line < 1 {
		return fail(ExitCodeUsageError, ErrMsgInvalidLine, errors.New(lineArg))
	}
	compiled, err := readInput(file, c.stdin)
	if err != nil {
		return fail(ExitCodeInputError, ErrMsgReadFileFailed, err)
	}

	loc := blade.Locate(string(compiled), line)
	if flags.format == OutputFormatJSON {
		out := locationOutput{Path: loc.Path, Line: loc.Line, Physical: loc.Physical, Frames: loc.Frames}
		jsonBytes, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(c.stdout, string(jsonBytes))
		return nil
	}
	newPrinter(c.stdout).printLocation(loc)
	return nil
}
