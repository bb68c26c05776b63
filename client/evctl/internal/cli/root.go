// Package cli wires the evctl commands.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"evregistry/client/evctl/internal/api"
	"evregistry/client/evctl/internal/config"
	"evregistry/client/evctl/internal/session"
)

// errAdminOnly is returned before contacting the server; the server still
// applies its own policy.
var errAdminOnly = errors.New("this command needs an admin session (use --force to send it anyway)")

type app struct {
	cfg    *config.Config
	holder *session.Holder
	client *api.Client
}

func (a *app) init(server, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if server != "" {
		cfg.Server = server
	}
	a.cfg = cfg
	a.holder = session.NewHolder(session.NewFileStore(cfg.TokenFile))
	a.client = api.NewClient(cfg.Server, api.NewDefaultHTTPClient(cfg.Timeout), a.holder)
	return nil
}

// requireAdmin gates mutations on the locally decoded role.
func (a *app) requireAdmin(force bool) error {
	s, err := a.holder.Current()
	if err != nil {
		return err
	}
	if !s.IsAdmin() && !force {
		return errAdminOnly
	}
	return nil
}

// NewRootCmd builds the evctl command tree.
func NewRootCmd() *cobra.Command {
	var (
		server     string
		configPath string
	)
	a := &app{}

	root := &cobra.Command{
		Use:           "evctl",
		Short:         "Command-line client for the EV charging station registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(server, configPath)
		},
	}
	root.PersistentFlags().StringVar(&server, "server", "", "registry base URL (overrides config)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		newSignupCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newStationsCmd(a),
	)
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
