package commands

import (
	"github.com/spf13/cobra"
)

func newEmailCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "email",
		Aliases: []string{"e"},
		Short:   "Email index entries",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <email> <username>",
			Short: "Claim an address for a user",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := a.db.Email.Add(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), e)
			},
		},
		&cobra.Command{
			Use:   "verify <email> <username>",
			Short: "Mark an address as verified",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := a.db.Email.Verify(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), e)
			},
		},
		&cobra.Command{
			Use:   "remove <email> <username>",
			Short: "Release an unverified address",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.db.Email.Remove(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"removed": args[0]})
			},
		},
	)
	return cmd
}
