package commands

import (
	"time"

	"github.com/spf13/cobra"
)

func newSessionCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"s"},
		Short:   "Sessions",
	}

	cmd.AddCommand(
		newSessionCreateCommand(a),
		newSessionValidateCommand(a),
		newSessionResetCommand(a),
	)
	return cmd
}

func newSessionCreateCommand(a *app) *cobra.Command {
	var (
		ttl  time.Duration
		data []string
	)

	cmd := &cobra.Command{
		Use:   "create <subject>",
		Short: "Start a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := splitPairs(data)
			if err != nil {
				return err
			}
			s, err := a.db.Sessions.Create(cmd.Context(), args[0], attrs, ttl)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "session ttl (default from session.default_ttl)")
	cmd.Flags().StringArrayVar(&data, "data", nil, "session data as key=value (repeatable)")
	return cmd
}

func newSessionValidateCommand(a *app) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "validate <subject> <id>",
		Short: "Admit one request on a session and renew it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.db.Sessions.Validate(cmd.Context(), args[0], args[1], ttl); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]bool{"valid": true})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "renewed ttl (default: the session's own)")
	return cmd
}

func newSessionResetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <subject>",
		Short: "Delete every session of a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.db.Sessions.Reset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"deleted": n})
		},
	}
}
