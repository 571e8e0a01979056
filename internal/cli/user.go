package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/zooz/internal/model"
)

func newUserCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCommand(root))
	cmd.AddCommand(newUserListCommand(root))
	return cmd
}

func newUserAddCommand(root *RootOptions) *cobra.Command {
	var (
		role     string
		name     string
		email    string
		password string
		parent   string
		age      int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a parent, child or admin",
		Example: `  zoozctl user add --role parent --name Pat --email pat@example.com --password secret
  zoozctl user add --role child --name Kim --parent pat@example.com --age 9 --email kim@example.com --password secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := model.Role(strings.ToLower(role))
			if !r.Valid() {
				return &ExitError{Code: ExitCommandError, Err: fmt.Errorf("unknown role %q", role)}
			}
			if strings.TrimSpace(name) == "" {
				return &ExitError{Code: ExitCommandError, Err: fmt.Errorf("--name is required")}
			}
			if r == model.RoleChild && parent == "" {
				return &ExitError{Code: ExitCommandError, Err: fmt.Errorf("--parent is required for children")}
			}
			if r != model.RoleChild && (parent != "" || age != 0) {
				return &ExitError{Code: ExitCommandError, Err: fmt.Errorf("--parent and --age only apply to children")}
			}

			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			u := model.User{Email: email, DisplayName: strings.TrimSpace(name), Role: r, Age: age}
			if r == model.RoleChild {
				p, err := a.users.GetByEmail(ctx, strings.ToLower(parent))
				if err != nil {
					return err
				}
				if p == nil {
					p, err = a.users.GetByID(ctx, parent)
					if err != nil {
						return err
					}
				}
				if p == nil || !p.IsParent() {
					return &ExitError{Code: ExitCommandError, Err: fmt.Errorf("parent %q not found", parent)}
				}
				u.ParentID = p.ID
			}

			created, err := a.users.Create(ctx, u, password)
			if err != nil {
				return err
			}
			return a.out.emit(created, func(w io.Writer) {
				row(w, "created", created.Role, created.ID, created.DisplayName)
			})
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "parent, child or admin")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password (empty disables login)")
	cmd.Flags().StringVar(&parent, "parent", "", "parent email or id (children only)")
	cmd.Flags().IntVar(&age, "age", 0, "age (children only)")
	cmd.MarkFlagRequired("role")
	return cmd
}

func newUserListCommand(root *RootOptions) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users of a role with child balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := model.Role(strings.ToLower(role))
			if !r.Valid() {
				return &ExitError{Code: ExitCommandError, Err: fmt.Errorf("unknown role %q", role)}
			}
			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.users.ListByRole(cmd.Context(), r)
			if err != nil {
				return err
			}
			if r != model.RoleChild {
				return a.out.emit(users, func(w io.Writer) {
					row(w, "ID", "NAME", "EMAIL")
					for _, u := range users {
						row(w, u.ID, u.DisplayName, u.Email)
					}
				})
			}

			children := make([]model.Child, 0, len(users))
			for _, u := range users {
				c, err := a.users.GetChild(cmd.Context(), u.ID)
				if err != nil {
					return err
				}
				if c != nil {
					children = append(children, *c)
				}
			}
			return a.out.emit(children, func(w io.Writer) {
				row(w, "ID", "NAME", "PARENT", "BALANCE")
				for _, c := range children {
					row(w, c.ID, c.DisplayName, c.ParentID, c.TokenBalance)
				}
			})
		},
	}

	cmd.Flags().StringVar(&role, "role", "child", "parent, child or admin")
	return cmd
}
