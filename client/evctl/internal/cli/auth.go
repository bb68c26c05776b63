package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"evregistry/client/evctl/internal/session"
)

func newSignupCmd(a *app) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := promptPassword(cmd.ErrOrStderr(), "Password: ")
			if err != nil {
				return err
			}
			u, err := a.client.Signup(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s <%s> (%s)\n", u.Name, u.Email, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := promptPassword(cmd.ErrOrStderr(), "Password: ")
			if err != nil {
				return err
			}
			u, err := a.client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s> (%s)\n", u.Name, u.Email, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.holder.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			s, err := a.holder.Current()
			if errors.Is(err, session.ErrNoSession) {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}
			if err != nil {
				return err
			}
			if remote {
				u, err := a.client.Me(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s <%s> role=%s (confirmed by server)\n", u.ID, u.Name, u.Email, u.Role)
				return nil
			}
			p := s.Principal
			fmt.Fprintf(out, "%s %s <%s> role=%s expires=%s\n",
				p.Subject, p.Name, p.Email, p.Role, s.ExpiresAt.Local().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "ask the server instead of decoding the token locally")
	return cmd
}
