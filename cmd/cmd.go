package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"dasbindgen/binder"
	"dasbindgen/clangast"
	"dasbindgen/emit"
	"dasbindgen/envconfig"
	"dasbindgen/logutil"
	"dasbindgen/policy"
)

// Exit codes per error class
const (
	ExitFailure        = 1
	ExitConfiguration  = 2
	ExitFrontend       = 3
	ExitClassification = 4
	ExitEmission       = 5
)

// ExitCode maps an error returned by the CLI to a process exit code
func ExitCode(err error) int {
	var (
		cerr *binder.ConfigurationError
		ferr *clangast.FrontendError
		kerr *binder.ClassificationError
		eerr *binder.EmissionError
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &cerr):
		return ExitConfiguration
	case errors.As(err, &ferr):
		return ExitFrontend
	case errors.As(err, &kerr):
		return ExitClassification
	case errors.As(err, &eerr):
		return ExitEmission
	}
	return ExitFailure
}

// sourceOptions are the flags shared by every command that reads a header
type sourceOptions struct {
	header      string
	clang       string
	frontend    string
	includeDirs string
	includeSep  string
	config      string
}

func (o *sourceOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.header, "header", "", "C header to bind")
	flags.StringVar(&o.clang, "clang", "", "Front-end executable (default $DASBIND_CLANG)")
	flags.StringVar(&o.frontend, "frontend", "", "Front-end implementation: "+strings.Join(clangast.Names(), ", ")+" (default $DASBIND_FRONTEND)")
	flags.StringVar(&o.includeDirs, "include-dirs", "", "Include directories joined by --include-dirs-sep (default $DASBIND_INCLUDE_DIRS)")
	flags.StringVar(&o.includeSep, "include-dirs-sep", ";", "Separator for --include-dirs")
	flags.StringVar(&o.config, "config", "default", "Policy file or registered policy name")
	_ = cmd.MarkFlagRequired("header")
}

func (o *sourceOptions) dirs() []string {
	if o.includeDirs == "" {
		return envconfig.IncludeDirs
	}
	if o.includeSep == "" {
		return []string{o.includeDirs}
	}
	var dirs []string
	// entries keep their spelling, only empty ones between separators go
	for _, d := range strings.Split(o.includeDirs, o.includeSep) {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// load parses the header and discovers its entities
func (o *sourceOptions) load(ctx context.Context) (*clangast.Tree, *binder.TranslationUnit, error) {
	p, err := policy.Load(o.config, o.header)
	if err != nil {
		return nil, nil, err
	}

	exe := o.clang
	if exe == "" {
		exe = envconfig.Clang
	}
	name := o.frontend
	if name == "" {
		name = envconfig.Frontend
	}
	fe, err := clangast.New(name, exe)
	if err != nil {
		return nil, nil, err
	}

	dirs := o.dirs()
	slog.Info("parsing header", "header", o.header, "frontend", name, "include_dirs", dirs)
	tree, err := fe.Parse(ctx, o.header, dirs)
	if err != nil {
		return nil, nil, err
	}

	tu := binder.NewTranslationUnit(tree.Root, p, dirs)
	if err := tu.Discover(); err != nil {
		return nil, nil, err
	}
	return tree, tu, nil
}

func envDocs() string {
	vars := envconfig.AsMap()
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("\nEnvironment Variables:\n")
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("      %-22s %s\n", vars[k].Name, vars[k].Description))
	}
	return sb.String()
}

func NewGenerateCmd() *cobra.Command {
	var (
		src    sourceOptions
		output string
		parts  int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate daScript bindings for a C header",
		Long:  "Generate the C++ source of a daScript module that binds the declarations of a C header.\n" + envDocs(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if parts < 0 {
				return &binder.ConfigurationError{Subject: "--parts", Err: fmt.Errorf("must not be negative, got %d", parts)}
			}
			tree, tu, err := src.load(cmd.Context())
			if err != nil {
				return err
			}
			files, err := emit.New(tu, tree, src.header, emit.Options{Output: output, Parts: parts}).Files()
			if err != nil {
				return err
			}
			if err := emit.WriteFiles(files); err != nil {
				return err
			}
			slog.Info("finished", "files", len(files))
			return nil
		},
	}

	src.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Generated .cpp file, or the prefix of every unit with --parts")
	cmd.Flags().IntVar(&parts, "parts", 0, "Split the module into this many units (0 writes a single file)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func NewPoliciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List registered policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range policy.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func NewCLI() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "dasbindgen",
		Short: "daScript binding generator for C headers",
		// main prints the error and picks the exit code
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Disable usage printing on errors
			cmd.SilenceUsage = true

			if logLevel == "" && envconfig.Debug {
				logLevel = "debug"
			}
			level, err := logutil.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logutil.NewLogger(os.Stderr, level))
			slog.Debug("environment", "config", envconfig.Values())
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (default info)")

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		NewGenerateCmd(),
		NewInspectCmd(),
		NewPoliciesCmd(),
	)

	return rootCmd
}
