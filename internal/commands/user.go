package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerwell/ledgerwell/internal/identity"
	"github.com/ledgerwell/ledgerwell/internal/model"
)

func newRegisterCommand(opts *rootOptions) *cobra.Command {
	var p identity.RegisterParams

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a user from --username and --password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer closeApp(a, &err)

			p.Username, p.Password = opts.credentials()
			u, err := a.identity.Register(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s)\n", u.Username, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&p.FullName, "full-name", "", "full name")
	cmd.Flags().StringVar(&p.Email, "email", "", "email address")
	cmd.Flags().StringVar(&p.Phone, "phone", "", "phone number")

	return cmd
}

func newProfileCommand(opts *rootOptions) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the signed-in user's profile",
	}
	profileCmd.AddCommand(newProfileShowCommand(opts), newProfileUpdateCommand(opts))
	return profileCmd
}

func newProfileShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(a *app, sess model.Session) error {
				u, err := a.identity.Profile(cmd.Context(), sess.UserID)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "User ID:   %s\n", u.ID)
				fmt.Fprintf(w, "Username:  %s\n", u.Username)
				fmt.Fprintf(w, "Full name: %s\n", u.FullName)
				fmt.Fprintf(w, "Email:     %s\n", u.Email)
				fmt.Fprintf(w, "Phone:     %s\n", u.Phone)
				fmt.Fprintf(w, "Member since: %s\n", u.CreatedAt.Format(dateFormat))
				return nil
			})
		},
	}
}

func newProfileUpdateCommand(opts *rootOptions) *cobra.Command {
	var p model.ProfileUpdate

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Replace profile fields; omitted fields are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(a *app, sess model.Session) error {
				if err := a.identity.UpdateProfile(cmd.Context(), sess.UserID, p); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Profile updated")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&p.FullName, "full-name", "", "new full name")
	cmd.Flags().StringVar(&p.Email, "email", "", "new email address")
	cmd.Flags().StringVar(&p.Phone, "phone", "", "new phone number")

	return cmd
}
