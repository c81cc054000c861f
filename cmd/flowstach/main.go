package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/config"
	"github.com/Maria-the2nd/flow-stach-sub004/convert"
	"github.com/Maria-the2nd/flow-stach-sub004/css"
	"github.com/Maria-the2nd/flow-stach-sub004/misc"
	"github.com/Maria-the2nd/flow-stach-sub004/page"
	"github.com/Maria-the2nd/flow-stach-sub004/safety"
	"github.com/Maria-the2nd/flow-stach-sub004/state"
	"github.com/Maria-the2nd/flow-stach-sub004/tokens"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// initializeAppContext prepares application context before command execution but
// after command line has been parsed
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	if cmd.NArg() == 0 {
		// nothing to do, just return
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)

	configFile := cmd.String("config")
	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		env.Cfg.Logging.ConsoleLogger.Level = "debug"
	}
	if env.Log, err = env.Cfg.Logging.Prepare(); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()), zap.String("hash", misc.GetGitHash()))

	if len(configFile) == 0 && env.Log != nil {
		env.Log.Info("Using defaults (no configuration file)")
	}
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}

	// close logging
	env.RestoreStdLog()
	return
}

// Ignore urfave/cli default error handling - for me cli.Exit() looks
// non-transparent and unnesessary. I will return regular errors from
// subcommands.
var errWasHandled bool

// this is called before appContext is destroyed, so we have a chance to
// properly log any error from subcommand
func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {

	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	// do nothing special, error is reported either by exitErrHandler or on
	// exit directly to stderr.
	return err
}

func subcommandNotFoundHandler(ctx context.Context, _ *cli.Command, name string) {
	state.EnvFromContext(ctx).Log.Warn("Unknown command, nothing to do", zap.String("command", name))
}

func main() {

	// allow graceful shutdown on interrupt - section conversion may fan out
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "converts HTML pages with CSS into design-tool clipboard payloads",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		CommandNotFound: subcommandNotFoundHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "verbose logging plus trace/report dump next to the output"},
		},
		Commands: []*cli.Command{
			{
				Name:         "convert",
				Usage:        "Converts an HTML page into a clipboard payload",
				OnUsageError: usageErrorHandler,
				Action:       runConvert,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "service-url", Usage: "generation service `URL`; when unset the deterministic builder runs alone"},
					&cli.StringFlag{Name: "pattern", Usage: "claim container divs whose leading class ends in `SUFFIX` as sections"},
					&cli.BoolFlag{Name: "no-dedupe", Usage: "keep duplicate rules in per-section CSS subsets"},
				},
				ArgsUsage: "SOURCE [DESTINATION]",
				CustomHelpTemplate: fmt.Sprintf(`%s
SOURCE:
    path to the HTML page to process; stylesheets are taken from its <style> blocks

DESTINATION:
    file name for the clipboard JSON, if absent - derived from SOURCE in the current directory
`, cli.CommandHelpTemplate),
			},
			{
				Name:         "inspect",
				Usage:        "Shows detected sections, design tokens and CSS routing without building",
				OnUsageError: usageErrorHandler,
				Action:       runInspect,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pattern", Usage: "claim container divs whose leading class ends in `SUFFIX` as sections"},
				},
				ArgsUsage: "SOURCE",
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError: usageErrorHandler,
				Action:       outputConfiguration,
				ArgsUsage:    "DESTINATION",
			},
		},
	}

	var err error
	// NOTE: os.Exit is called at the end of main to set exit code, make sure
	// there are no other deffered functions after that
	defer func() {
		stop()
		if err != nil {
			// It may happen that log is either not set yet (argument parsing) or already closed,
			// report errors to stderr directly
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

// pipelineOptions merges configuration with command line overrides.
func pipelineOptions(env *state.LocalEnv, cmd *cli.Command) convert.Options {
	opts := env.Cfg.PipelineOptions()
	if pattern := cmd.String("pattern"); len(pattern) > 0 {
		opts.Detect.Implicit = true
		opts.Detect.ImplicitSuffix = pattern
	}
	if cmd.Bool("no-dedupe") {
		opts.Extract.Dedupe = false
	}
	if url := cmd.String("service-url"); len(url) > 0 {
		opts.ServiceURL = url
	}
	return opts
}

func runConvert(ctx context.Context, cmd *cli.Command) error {

	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("no source file specified")
	}
	src := cmd.Args().Get(0)

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("unable to read source file '%s': %w", src, err)
	}

	result, err := convert.Run(ctx, string(data), pipelineOptions(env, cmd), env.Log)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		dst = config.CleanFileName(base) + ".json"
	}

	if cmd.Root().Bool("debug") {
		dump := struct {
			Report interface{} `json:"report"`
			Traces interface{} `json:"traces"`
			Fixes  []string    `json:"fixes"`
		}{result.Report, result.Traces, result.Fixes}
		if data, er := json.MarshalIndent(dump, "", "  "); er == nil {
			name := dst + ".report.json"
			if er = os.WriteFile(name, data, 0644); er != nil {
				env.Log.Warn("Unable to write report dump", zap.String("file", name), zap.Error(er))
			}
		}
	}

	if result.Report.Status == safety.StatusBlock {
		return fmt.Errorf("export blocked: %s", strings.Join(result.Report.FatalIssues, "; "))
	}

	payload, err := result.Document.Encode()
	if err != nil {
		return fmt.Errorf("unable to serialize document: %w", err)
	}
	if err := os.WriteFile(dst, payload, 0644); err != nil {
		return fmt.Errorf("unable to write destination file '%s': %w", dst, err)
	}

	env.Log.Info("Conversion done",
		zap.String("source", src),
		zap.String("destination", dst),
		zap.Int("sections", len(result.Sections)),
		zap.Int("variables", len(result.Manifest.Variables)),
		zap.String("status", string(result.Report.Status)))
	return nil
}

func runInspect(ctx context.Context, cmd *cli.Command) error {

	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("no source file specified")
	}
	src := cmd.Args().Get(0)

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("unable to read source file '%s': %w", src, err)
	}

	opts := pipelineOptions(env, cmd)
	split := page.Split(string(data), opts.Detect, opts.Extract, env.Log)
	for _, sec := range split.Sections {
		env.Log.Info("Section",
			zap.String("name", sec.Name),
			zap.String("tag", sec.Tag),
			zap.String("class", sec.PrimaryClass),
			zap.Int("rules", strings.Count(sec.CSS, "{")))
	}

	sheet := css.NewParser(env.Log).Parse([]byte(split.Stylesheet), src)
	extractor := tokens.NewExtractor(env.Log)
	manifest := extractor.ExtractVariables(sheet, split.Title, opts.Tokens)
	for _, v := range manifest.Variables {
		env.Log.Info("Variable", zap.String("handle", v.Handle), zap.String("kind", string(v.Kind)), zap.String("value", v.Value))
	}
	for _, f := range extractor.ExtractFonts(sheet) {
		env.Log.Info("Font", zap.String("family", f.Family), zap.String("source", string(f.Source)), zap.Bool("compatible", f.Compatible))
	}

	tracer := convert.NewTracer(opts.Vocab, opts.Tracer, env.Log)
	counts := map[convert.Destination]int{}
	for _, trace := range tracer.Trace(sheet.AllRules()) {
		counts[trace.Destination]++
		env.Log.Debug("Route",
			zap.String("selector", trace.Selector),
			zap.String("destination", string(trace.Destination)),
			zap.Strings("reasons", trace.Reasons))
	}
	env.Log.Info("Routing summary",
		zap.Int("native", counts[convert.DestNative]),
		zap.Int("embed", counts[convert.DestEmbed]),
		zap.Int("split", counts[convert.DestSplit]))
	return nil
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) (err error) {

	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fname := cmd.Args().Get(0)

	var (
		data     []byte
		cfgState string
	)

	out := os.Stdout
	if len(fname) > 0 {
		out, err = os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer func() {
			err = multierr.Append(err, out.Close())
		}()
	}

	if cmd.Bool("default") {
		cfgState = "default"
		data, err = config.Prepare()
	} else {
		cfgState = "actual"
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	if len(fname) == 0 {
		fname = "STDOUT"
	}
	env.Log.Info("Outputing configuration", zap.String("state", cfgState), zap.String("file", fname))

	_, err = out.Write(data)
	if err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}
