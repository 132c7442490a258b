// Package cli implements the ormctl command line.
package cli

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leandroluk/orm"
	"github.com/leandroluk/orm/config"
	"github.com/leandroluk/orm/core"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Connection string
	URL        string
	Debug      bool
}

// NewRootCommand creates the root command of ormctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "ormctl",
		Short:         "Inspect and query stores through the orm drivers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./orm.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.Connection, "connection", "n", "", "connection name from the config file")
	cmd.PersistentFlags().StringVar(&opts.URL, "url", "", "connection url, overrides --config and --connection")
	cmd.PersistentFlags().BoolVarP(&opts.Debug, "debug", "d", false, "log every statement to stderr")

	cmd.AddCommand(NewProtocolsCommand())
	cmd.AddCommand(NewPingCommand(opts))
	cmd.AddCommand(NewInferCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))

	return cmd
}

// connect opens the driver selected by the global flags. The caller closes it.
func connect(ctx context.Context, opts *RootOptions, stderr io.Writer) (core.Driver, error) {
	var connection core.ConnectionConfig
	if opts.URL != "" {
		parsed, err := core.ParseURL(opts.URL)
		if err != nil {
			return nil, errors.Wrap(err, "parse --url")
		}
		connection = parsed
	} else {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		if connection, err = cfg.Connection(opts.Connection); err != nil {
			return nil, err
		}
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	options := connection.Options()
	options.Debug = options.Debug || opts.Debug
	options.Logger = logger

	driver, err := orm.Connect(ctx, connection, options)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", connection.Protocol)
	}
	return driver, nil
}

// withDriver runs fn against a connected driver and closes it afterwards.
func withDriver(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, driver core.Driver) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	driver, err := connect(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer driver.Close(ctx)
	return fn(ctx, driver)
}

func writeYAML(w io.Writer, value any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(value); err != nil {
		return errors.Wrap(err, "encode output")
	}
	return encoder.Close()
}
