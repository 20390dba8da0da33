package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"neonote/internal/domain/account"
)

func newLoginCommand() *cobra.Command {
	var creds account.Credentials

	cmd := &cobra.Command{
		Use:     "login",
		Short:   "Sign in and store the access token",
		GroupID: "account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			if creds.Password == "" {
				if creds.Password, err = readPassword(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			sess, err := app.auth.Login(cmd.Context(), creds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", sess.User.Email, sess.User.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&creds.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "Account password (read from stdin when omitted)")
	return cmd
}

func newRegisterCommand() *cobra.Command {
	var (
		reg  account.Registration
		role string
	)

	cmd := &cobra.Command{
		Use:     "register",
		Short:   "Create an account and sign in",
		GroupID: "account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			reg.Role = account.Role(role)
			if reg.Password == "" {
				if reg.Password, err = readPassword(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			sess, err := app.auth.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s as %s\n", sess.User.Email, sess.User.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&reg.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "Account password (read from stdin when omitted)")
	cmd.Flags().StringVar(&role, "role", string(account.RoleStudent), "Account role")
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "logout",
		Short:   "Forget the stored access token",
		GroupID: "account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.auth.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func readPassword(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
