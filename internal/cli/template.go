package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/zooz/internal/catalog"
	"github.com/dukerupert/zooz/internal/model"
)

func newTemplateCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage activity templates",
	}
	cmd.AddCommand(newTemplateAddCommand(root))
	cmd.AddCommand(newTemplateListCommand(root))
	return cmd
}

func newTemplateAddCommand(root *RootOptions) *cobra.Command {
	var (
		in    catalog.ActivityInput
		owner string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a template owned by an admin",
		Long: `Creates an activity template. A zero --tokens uses the category default
(educational 15, social 10, house_chores 8, physical 12). The template is
owned by --owner, or by the first admin when omitted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			var admin *model.User
			if owner != "" {
				if admin, err = a.users.GetByEmail(ctx, strings.ToLower(owner)); err != nil {
					return err
				}
			} else {
				admins, err := a.users.ListByRole(ctx, model.RoleAdmin)
				if err != nil {
					return err
				}
				if len(admins) > 0 {
					admin = &admins[0]
				}
			}
			if admin == nil || !admin.IsAdmin() {
				return &ExitError{Code: ExitCommandError, Err: fmt.Errorf("no admin user to own the template; create one with 'user add --role admin'")}
			}

			t, err := a.catalog.CreateTemplate(ctx, *admin, in)
			if err != nil {
				return err
			}
			return a.out.emit(t, func(w io.Writer) {
				row(w, "created", t.ID, t.Title, t.Category, t.TokenValue)
			})
		},
	}

	cmd.Flags().StringVar(&in.Title, "title", "", "template title")
	cmd.Flags().StringVar(&in.Description, "description", "", "template description")
	cmd.Flags().StringVar((*string)(&in.Category), "category", "", "educational, social, house_chores or physical")
	cmd.Flags().IntVar(&in.TokenValue, "tokens", 0, "token value (0 for the category default)")
	cmd.Flags().BoolVar(&in.RequiresEvidence, "evidence", false, "require an evidence URL")
	cmd.Flags().StringVar((*string)(&in.RecurringType), "recurring", "none", "none, daily or weekly")
	cmd.Flags().StringVar(&owner, "owner", "", "admin email that owns the template")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("category")
	return cmd
}

func newTemplateListCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List activity templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			templates, err := a.catalog.ListTemplates(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.emit(templates, func(w io.Writer) {
				row(w, "ID", "TITLE", "CATEGORY", "TOKENS")
				for _, t := range templates {
					row(w, t.ID, t.Title, t.Category, t.TokenValue)
				}
			})
		},
	}
}
