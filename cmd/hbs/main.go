// hbs renders a template against a JSON, JSONC or YAML data file.
//
// A named template is looked up among the files of --dir; --source renders
// an inline template instead. Output goes to stdout unless --output is set.
//
//	hbs --dir templates --data league.yaml standings
//	hbs --source 'Hello {{name}}' --data person.json
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aescanero/dago-template/internal/data"
	"github.com/aescanero/dago-template/internal/eval/cel"
	"github.com/aescanero/dago-template/internal/eval/template"
	"github.com/aescanero/dago-template/internal/loader"
	"github.com/aescanero/dago-template/internal/value"
)

var (
	// Version is set at build time
	Version = "dev"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	dir       string
	ext       string
	source    string
	dataPath  string
	output    string
	noEscape  bool
	noCEL     bool
	maxDepth  int
	logLevel  string
	list      bool
	version   bool
	showUsage bool
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("hbs", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.dir, "dir", "d", "", "directory of templates to register")
	flagSet.StringVar(&opts.ext, "ext", loader.DefaultExt, "template file extension")
	flagSet.StringVarP(&opts.source, "source", "s", "", "inline template source (instead of a template name)")
	flagSet.StringVarP(&opts.dataPath, "data", "D", "", "data file (.json, .jsonc, .yaml, .yml)")
	flagSet.StringVarP(&opts.output, "output", "o", "", "write output to this file instead of stdout")
	flagSet.BoolVar(&opts.noEscape, "no-escape", false, "disable HTML escaping of {{expr}} output")
	flagSet.BoolVar(&opts.noCEL, "no-cel", false, "do not register the when helper")
	flagSet.IntVar(&opts.maxDepth, "max-depth", 64, "maximum partial nesting depth")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flagSet.BoolVarP(&opts.list, "list", "l", false, "list registered templates and exit")
	flagSet.BoolVar(&opts.version, "version", false, "print version and exit")
	flagSet.BoolVarP(&opts.showUsage, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if opts.showUsage {
		printHelp(stderr, flagSet)
		return nil
	}
	if opts.version {
		fmt.Fprintf(stdout, "hbs %s\n", Version)
		return nil
	}

	logger, err := initLogger(opts.logLevel, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	registry := template.NewRegistry(registryOptions(&opts, logger)...)
	if opts.dir != "" {
		if _, err := loader.New(opts.ext, logger).LoadDir(registry, opts.dir); err != nil {
			return err
		}
	}

	if opts.list {
		for _, name := range registry.TemplateNames() {
			fmt.Fprintln(stdout, name)
		}
		return nil
	}

	positional := flagSet.Args()
	switch {
	case opts.source == "" && len(positional) != 1:
		return fmt.Errorf("expected exactly one template name (or --source)")
	case opts.source != "" && len(positional) != 0:
		return fmt.Errorf("--source does not take a template name")
	}

	input := value.Null()
	if opts.dataPath != "" {
		input, err = data.ReadFile(opts.dataPath)
		if err != nil {
			return err
		}
	}

	render := func(out io.Writer) error {
		if opts.source != "" {
			tmpl, err := template.Compile("inline", opts.source)
			if err != nil {
				return err
			}
			return registry.RenderTemplate(out, tmpl, input)
		}
		return registry.RenderTo(out, positional[0], input)
	}

	if opts.output == "" {
		return render(stdout)
	}

	f, err := createOutput(opts.output)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := render(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	return nil
}

// createOutput opens the --output file
var createOutput = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

func registryOptions(opts *options, logger *zap.Logger) []template.Option {
	regOpts := []template.Option{
		template.WithLogger(logger),
		template.WithMaxDepth(opts.maxDepth),
	}
	if opts.noEscape {
		regOpts = append(regOpts, template.WithoutEscape())
	}
	if !opts.noCEL {
		regOpts = append(regOpts, template.WithCEL(cel.NewEvaluator(logger)))
	}
	return regOpts
}

// initLogger builds a console logger writing to w
func initLogger(level string, w io.Writer) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(zapLevel),
	)
	return zap.New(core), nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `hbs renders Handlebars templates against structured data.

Usage:
  hbs [flags] <template>
  hbs [flags] --source '<template text>'

Flags:
%s`, flagSet.FlagUsages())
}
