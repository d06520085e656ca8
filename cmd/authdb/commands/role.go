package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authdb"
	"github.com/MrEthical07/authdb/permission"
)

func newRoleCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "role",
		Aliases: []string{"r"},
		Short:   "Roles and their ACLs",
	}

	cmd.AddCommand(
		newRoleCreateCommand(a),
		newRoleGetCommand(a),
		newRoleListCommand(a),
		newRoleCanCommand(a),
	)
	return cmd
}

func newRoleCreateCommand(a *app) *cobra.Command {
	var (
		description string
		acl         []string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.db.Roles.Create(cmd.Context(), authdb.RoleInput{
				Name:        args[0],
				Description: description,
				ACL:         parseRules(acl),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "role description")
	cmd.Flags().StringArrayVar(&acl, "acl", nil, `grant as "resource" or "resource:METHOD[,METHOD]" (repeatable)`)
	return cmd
}

func newRoleGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show a role and its ACL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.db.Roles.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if r == nil {
				return authdb.ErrRoleNotFound
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	}
}

func newRoleListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [prefix]",
		Short: "List role names",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}
			names, err := a.db.Roles.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), names)
		},
	}
}

func newRoleCanCommand(a *app) *cobra.Command {
	var roles []string

	cmd := &cobra.Command{
		Use:   "can <resource> [method]",
		Short: "Check whether any of the roles grants method on resource",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var method string
			if len(args) == 2 {
				method = args[1]
			}
			ok, err := a.db.Roles.HasPermission(cmd.Context(), roles, args[0], method)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]bool{"allowed": ok})
		},
	}

	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to check, in order (repeatable)")
	return cmd
}

// parseRules reads "posts" as every method on posts and "posts:GET,PUT" as
// the listed methods.
func parseRules(specs []string) []permission.Rule {
	rules := make([]permission.Rule, 0, len(specs))
	for _, s := range specs {
		resource, methods, ok := strings.Cut(s, permission.Separator)
		if !ok {
			rules = append(rules, permission.All(resource))
			continue
		}
		rules = append(rules, permission.Rule{Resource: resource, Methods: strings.Split(methods, ",")})
	}
	return rules
}
