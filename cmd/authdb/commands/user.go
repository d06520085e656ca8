package commands

import (
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authdb"
)

func newUserCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "user",
		Aliases: []string{"u"},
		Short:   "User records",
	}

	cmd.AddCommand(
		newUserCreateCommand(a),
		newUserGetCommand(a),
		newUserRemoveCommand(a),
		newUserCheckCommand(a),
	)
	return cmd
}

func newUserCreateCommand(a *app) *cobra.Command {
	var (
		password string
		emails   []string
		roles    []string
		profile  []string
	)

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := splitPairs(profile)
			if err != nil {
				return err
			}
			u, err := a.db.Users.Create(cmd.Context(), authdb.UserInput{
				Username: args[0],
				Password: password,
				Emails:   emails,
				Roles:    roles,
				Profile:  attrs,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "initial password")
	cmd.Flags().StringSliceVar(&emails, "email", nil, "email address to claim (repeatable)")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role name (repeatable)")
	cmd.Flags().StringArrayVar(&profile, "profile", nil, "profile attribute as key=value (repeatable)")
	return cmd
}

func newUserGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <username>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.db.Users.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		},
	}
}

func newUserRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <username>",
		Short: "Remove a user and the email entries it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.db.Users.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"removed": args[0]})
		},
	}
}

func newUserCheckCommand(a *app) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "check <username>",
		Short: "Check a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.db.Users.CheckPassword(cmd.Context(), authdb.Credentials{
				Username: args[0],
				Password: password,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]bool{"ok": ok})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "password to check")
	return cmd
}
