package main

import (
	"errors"
	"strings"

	"github.com/JonMunkholm/LeadSync/internal/core"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func (c *cli) newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				if !c.interactive() {
					return errors.New("--email and --password are required when stdin is not a terminal")
				}
				if err := promptCredentials(&email, &password); err != nil {
					return err
				}
			}

			return c.withApp(func(a *app) error {
				if err := a.http.Login(cmd.Context(), strings.TrimSpace(email), password); err != nil {
					return describe(err)
				}
				c.ux.Successf("Signed in as %s", email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func promptCredentials(email, password *string) error {
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Email").
			Value(email).
			Validate(func(s string) error {
				if !strings.Contains(s, "@") {
					return errors.New("enter an email address")
				}
				return nil
			}),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(password),
	))
	return form.Run()
}

func (c *cli) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app) error {
				// The local credential is gone even when the backend call fails.
				err := a.http.Logout(cmd.Context())
				c.ux.Successf("Signed out")
				if err != nil {
					c.ux.Warnf("backend logout failed: %s", core.NewUserError(err))
				}
				return nil
			})
		},
	}
}

func (c *cli) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app) error {
				if !a.signedIn() {
					return errNotSignedIn
				}
				email, err := a.crm.Whoami(cmd.Context(), c.cfg.API.MePath)
				if err != nil {
					return describe(err)
				}
				c.ux.Println(email)
				return nil
			})
		},
	}
}

// describe turns known failures into a coded *core.UserError. Unknown ones
// pass through untouched.
func describe(err error) error {
	if !core.IsUserFacing(err) {
		return err
	}
	return core.NewUserError(err)
}
