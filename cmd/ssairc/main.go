// Package main implements ssairc, a CLI driver over the ssair text form:
// parse it, validate it, lower it, and emit either a re-printed module or
// AArch64 assembly. It follows the teacher's ralph-cc cobra wiring, cut
// down to this project's own pipeline stages.
package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ssair-lang/ssair/pkg/asmemit"
	"github.com/ssair-lang/ssair/pkg/irreader"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/translate"
	"github.com/ssair-lang/ssair/pkg/types"
)

var version = "0.1.0"

var (
	verbose    bool
	vverbose   bool
	outPath    string
	targetPath string
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newLogger(errOut io.Writer) zerolog.Logger {
	level := zerolog.WarnLevel
	switch {
	case vverbose:
		level = zerolog.TraceLevel
	case verbose:
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: errOut, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ssairc",
		Short:         "ssairc drives the ssair text IR through validation, lowering, and codegen",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress")
	rootCmd.PersistentFlags().BoolVar(&vverbose, "vv", false, "log pipeline progress at trace level")
	rootCmd.PersistentFlags().StringVar(&targetPath, "target", "", "YAML target-description file (default: aarch64 little-endian)")

	rootCmd.AddCommand(newEmitIRCmd(out, errOut))
	rootCmd.AddCommand(newAsmCmd(out, errOut))
	rootCmd.AddCommand(newCheckCmd(out, errOut))
	return rootCmd
}

// targetConfig resolves the types.Config this invocation should parse
// against: the on-disk description named by --target, or the built-in
// aarch64 default.
func targetConfig() (types.Config, error) {
	if targetPath == "" {
		return types.DefaultConfig(), nil
	}
	return types.LoadTargetConfig(targetPath)
}

func readInput(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(args[0])
	return string(b), err
}

// inputLabel names a file this invocation reads, "-" meaning stdin.
type inputLabel string

func (l inputLabel) read() (string, error) {
	if l == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(string(l))
	return string(b), err
}

// inputLabels turns check's positional args into a label list, defaulting
// to stdin when none are given.
func inputLabels(args []string) []inputLabel {
	if len(args) == 0 {
		return []inputLabel{"-"}
	}
	out := make([]inputLabel, len(args))
	for i, a := range args {
		out[i] = inputLabel(a)
	}
	return out
}

// newEmitIRCmd parses IR text, validates it, and re-prints it — the
// round-trip smoke test for pkg/irreader and pkg/ssair/printer.go.
func newEmitIRCmd(out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "emit-ir [file]",
		Short: "parse IR text, validate, and re-print it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(errOut)
			text, err := readInput(args)
			if err != nil {
				fmt.Fprintf(errOut, "ssairc: %v\n", err)
				return err
			}
			cfg, err := targetConfig()
			if err != nil {
				fmt.Fprintf(errOut, "ssairc: %v\n", err)
				return err
			}
			log.Debug().Msg("parsing IR text")
			m, err := irreader.Parse(cfg, text)
			if err != nil {
				fmt.Fprintf(errOut, "ssairc: parse error: %v\n", err)
				return err
			}
			if errs := m.Validate(); len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintf(errOut, "ssairc: %v\n", e)
				}
				return fmt.Errorf("validation failed with %d errors", len(errs))
			}
			log.Debug().Msg("re-printing module")
			w, closeW, err := openOutput(out)
			if err != nil {
				return err
			}
			defer closeW()
			return m.Print(w, ssair.PrintOptions{})
		},
	}
}

// newCheckCmd parses and validates only, exiting nonzero with structured
// errors on stderr and nothing on stdout — §6's "check" subcommand. Each
// ssair.Module is independent, so with more than one file this is the one
// place §5 allows true concurrency: an errgroup pool bounded by GOMAXPROCS
// fans the files out, and results are reported back in argument order
// regardless of which finished first.
func newCheckCmd(out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "check [file...]",
		Short: "validate one or more IR text files without emitting anything",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(errOut)
			cfg, err := targetConfig()
			if err != nil {
				fmt.Fprintf(errOut, "ssairc: %v\n", err)
				return err
			}

			labels := inputLabels(args)
			checkErrs := make([]error, len(labels))

			g := new(errgroup.Group)
			g.SetLimit(runtime.GOMAXPROCS(0))
			for i, label := range labels {
				i, label := i, label
				g.Go(func() error {
					checkErrs[i] = checkOne(cfg, label, log)
					return nil
				})
			}
			g.Wait()

			failed := 0
			for i, cerr := range checkErrs {
				if cerr == nil {
					continue
				}
				failed++
				fmt.Fprintf(errOut, "ssairc: %s: %v\n", labels[i], cerr)
			}
			if failed > 0 {
				return fmt.Errorf("validation failed for %d of %d file(s)", failed, len(labels))
			}
			return nil
		},
	}
}

// checkOne parses and validates a single input, returning a single
// combined error (or nil) — the unit of work the check worker pool fans
// out over.
func checkOne(cfg types.Config, label inputLabel, log zerolog.Logger) error {
	text, err := label.read()
	if err != nil {
		return err
	}
	m, err := irreader.Parse(cfg, text)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	log.Debug().Str("file", string(label)).Msg("validating module")
	if errs := m.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("%d validation error(s): %s", len(errs), joinLines(msgs))
	}
	return nil
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "; "
		}
		out += l
	}
	return out
}

// newAsmCmd runs the full IR-text → assembly pipeline (the `-S` semantics
// of the teacher's doAsm): parse, validate, translate to MIR, print GAS.
func newAsmCmd(out, errOut io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asm [file]",
		Short: "compile IR text to AArch64 assembly",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(errOut)
			text, err := readInput(args)
			if err != nil {
				fmt.Fprintf(errOut, "ssairc: %v\n", err)
				return err
			}
			cfg, err := targetConfig()
			if err != nil {
				fmt.Fprintf(errOut, "ssairc: %v\n", err)
				return err
			}
			log.Debug().Msg("parsing IR text")
			m, err := irreader.Parse(cfg, text)
			if err != nil {
				fmt.Fprintf(errOut, "ssairc: parse error: %v\n", err)
				return err
			}
			if errs := m.Validate(); len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintf(errOut, "ssairc: %v\n", e)
				}
				return fmt.Errorf("validation failed with %d errors", len(errs))
			}
			log.Debug().Msg("lowering to MIR")
			mm, err := translate.Translate(m)
			if err != nil {
				fmt.Fprintf(errOut, "ssairc: lowering error: %v\n", err)
				return err
			}
			w, closeW, err := openOutput(out)
			if err != nil {
				return err
			}
			defer closeW()
			log.Debug().Msg("emitting assembly")
			return asmemit.NewPrinter(w).PrintModule(mm)
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func openOutput(stdout io.Writer) (io.Writer, func(), error) {
	if outPath == "" || outPath == "-" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", outPath, err)
	}
	return f, func() { f.Close() }, nil
}
