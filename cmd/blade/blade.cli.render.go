package main

import (
	"runtime"

	"github.com/itsatony/go-blade"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// engineFlags are the flags that configure an engine.
type engineFlags struct {
	views  string
	config string
	dev    bool
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.views, FlagViews, "", HelpFlagViews)
	cmd.Flags().StringVarP(&f.config, FlagConfig, FlagConfigShort, "", HelpFlagConfig)
	cmd.Flags().BoolVar(&f.dev, FlagDev, false, HelpFlagDev)
}

// engine builds an engine from the configuration file, then --views and
// --dev, later settings overriding earlier ones.
func (f *engineFlags) engine(logger *zap.Logger) (*blade.Engine, error) {
	opts := []blade.Option{blade.WithLogger(logger)}

	if f.config != "" {
		cfg, err := blade.LoadConfig(f.config)
		if err != nil {
			return nil, fail(ExitCodeInputError, ErrMsgEngineFailed, err)
		}
		cfgOpts, err := cfg.Options(logger)
		if err != nil {
			return nil, fail(ExitCodeInputError, ErrMsgEngineFailed, err)
		}
		opts = append(opts, cfgOpts...)
	}
	if f.views != "" {
		loader, err := blade.NewFilesystemLoader(f.views)
		if err != nil {
			return nil, fail(ExitCodeInputError, ErrMsgEngineFailed, err)
		}
		opts = append(opts, blade.WithLoader(loader))
	}
	if f.dev {
		opts = append(opts, blade.WithMode(blade.ModeDevelopment))
	}

	engine, err := blade.New(opts...)
	if err != nil {
		return nil, fail(ExitCodeError, ErrMsgEngineFailed, err)
	}
	return engine, nil
}

type renderFlags struct {
	engineFlags
	data     string
	dataFile string
	out      string
	parallel int
}

func (c *cli) renderCommand() *cobra.Command {
	flags := &renderFlags{}
	cmd := &cobra.Command{
		Use:   CmdNameRender + " <name...>",
		Short: HelpRenderShort,
		Long:  HelpRenderLong,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, flags, args)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.data, FlagData, FlagDataShort, "", HelpFlagData)
	cmd.Flags().StringVarP(&flags.dataFile, FlagDataFile, FlagDataFileShort, "", HelpFlagDataFile)
	cmd.Flags().StringVarP(&flags.out, FlagOut, FlagOutShort, "", HelpFlagOut)
	cmd.Flags().IntVar(&flags.parallel, FlagParallel, 0, HelpFlagParallel)
	return cmd
}

// runRender renders every named template as its own render. Output is
// written in argument order once all renders succeeded.
func (c *cli) runRender(cmd *cobra.Command, flags *renderFlags, names []string) error {
	logger, err := c.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	bindings, err := loadBindings(flags.data, flags.dataFile, c.stdin)
	if err != nil {
		return err
	}
	engine, err := flags.engine(logger)
	if err != nil {
		return err
	}

	limit := flags.parallel
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	results := make([]string, len(names))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(limit)
	for i, name := range names {
		g.Go(func() error {
			out, err := engine.Render(ctx, name, bindings)
			if err != nil {
				return fail(ExitCodeRenderError, ErrMsgRenderFailed+" "+name, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, name := range names {
		target := blade.NormalizeTemplateName(name, blade.DefaultExtensions())
		if err := writeOutput(flags.out, target, []byte(results[i]), c.stdout); err != nil {
			return fail(ExitCodeError, ErrMsgWriteOutputFailed, err)
		}
	}
	return nil
}
