package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ownding/headscale-console/internal/headscale"
	"github.com/spf13/cobra"
)

func newUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage users",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := newOutputFormatter(cmd)
			return withApp(cmd, func(ctx context.Context, a *app) error {
				users, err := a.console.ListUsers(ctx)
				if err != nil {
					return err
				}
				return out.Print(users, usersTable(users))
			})
		},
	}

	var displayName string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a user (a display name needs the gRPC transport)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newOutputFormatter(cmd)
			return withApp(cmd, func(ctx context.Context, a *app) error {
				u, err := a.console.CreateUser(ctx, args[0], displayName)
				if err != nil {
					return err
				}
				return out.Success(fmt.Sprintf("User %s created", u.Name), map[string]any{"user": u})
			})
		},
	}
	create.Flags().StringVar(&displayName, "display-name", "", "Display name")

	var force bool
	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a user that has no nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newOutputFormatter(cmd)
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var err error
				if force {
					err = a.console.DeleteUser(ctx, args[0])
				} else {
					err = a.console.DeleteUserSafely(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return out.Success(fmt.Sprintf("User %s deleted", args[0]), map[string]any{"name": args[0]})
			})
		},
	}
	del.Flags().BoolVar(&force, "force", false, "Skip the attached-nodes check")

	cmd.AddCommand(list, create, del)
	return cmd
}

func newNamespacesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "namespaces",
		Aliases: []string{"namespace"},
		Short:   "Manage namespaces (gRPC only)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newOutputFormatter(cmd)
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.console.CreateNamespace(ctx, args[0]); err != nil {
					return err
				}
				return out.Success(fmt.Sprintf("Namespace %s created", args[0]), map[string]any{"name": args[0]})
			})
		},
	})
	return cmd
}

func newNodesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nodes",
		Aliases: []string{"node"},
		Short:   "Inspect nodes",
	}

	var user string
	list := &cobra.Command{
		Use:   "list",
		Short: "List nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := newOutputFormatter(cmd)
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var (
					nodes []headscale.Node
					err   error
				)
				if user != "" {
					nodes, err = a.console.ListNodesByUser(ctx, user)
				} else {
					nodes, err = a.console.ListNodes(ctx)
				}
				if err != nil {
					return err
				}
				return out.Print(nodes, nodesTable(nodes))
			})
		},
	}
	list.Flags().StringVar(&user, "user", "", "Only nodes owned by this user")

	status := &cobra.Command{
		Use:   "status",
		Short: "Count online and offline nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := newOutputFormatter(cmd)
			return withApp(cmd, func(ctx context.Context, a *app) error {
				s, err := a.console.NodeStatus(ctx)
				if err != nil {
					return err
				}
				return out.Print(s, fmt.Sprintf("Total: %d\nOnline: %d\nOffline: %d\n", s.Total, s.Online, s.Offline))
			})
		},
	}

	cmd.AddCommand(list, status)
	return cmd
}

func usersTable(users []headscale.User) string {
	if len(users) == 0 {
		return "No users.\n"
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDISPLAY NAME\tCREATED")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.DisplayName, u.CreatedAt)
	}
	w.Flush()
	return b.String()
}

func nodesTable(nodes []headscale.Node) string {
	if len(nodes) == 0 {
		return "No nodes.\n"
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tUSER\tADDRESSES\tONLINE")
	for _, n := range nodes {
		owner := ""
		if n.User != nil {
			owner = n.User.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", n.ID, n.Name, owner, strings.Join(n.IPAddresses, ","), n.Online)
	}
	w.Flush()
	return b.String()
}
