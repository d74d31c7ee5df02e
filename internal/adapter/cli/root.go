// Package cli builds the wizardd command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// ErrVersionRequested indicates the user requested the CLI version and no further work should be done.
var ErrVersionRequested = errors.New("version requested")

// ServeOptions carries the serve command's flags.
type ServeOptions struct {
	ConfigPath string
	Addr       string
}

// ServeFunc runs the daemon until the context is cancelled.
type ServeFunc func(ctx context.Context, opts ServeOptions) error

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Serve   ServeFunc
	Args    Arguments
	Version string
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "wizardd",
		Short: "GitHub PR review companion daemon",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(serveCommand(deps.Serve))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.PreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func serveCommand(serve ServeFunc) *cobra.Command {
	var configPath string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook daemon",
		Long: `Start the webhook daemon.

The daemon listens for GitHub webhook deliveries, classifies reviewer
feedback, posts AI responses, and tracks each response as a pending
annotation until a human accepts or rejects it or its TTL lapses.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if serve == nil {
				return errors.New("serve is not wired")
			}
			return serve(cmd.Context(), ServeOptions{
				ConfigPath: configPath,
				Addr:       addr,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Directory containing wizardd.yaml")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address override (e.g. :8080)")

	return cmd
}
