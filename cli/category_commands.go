package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"lecturemate/service"
)

func newCategoriesCommand(ctx *commandContext) *cobra.Command {
	categoriesCmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cat"},
		Short:   "Manage stored lecture categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listCategories(ctx, cmd)
		},
	}

	categoriesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories and their files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listCategories(ctx, cmd)
		},
	})

	categoriesCmd.AddCommand(&cobra.Command{
		Use:   "delete <category>",
		Short: "Move a category to the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *service.Service) error {
				trashed, err := svc.Store().Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "🗑 %s をゴミ箱に移動しました (%s)\n", args[0], trashed)
				return nil
			})
		},
	})

	categoriesCmd.AddCommand(&cobra.Command{
		Use:   "restore <category>",
		Short: "Restore the most recently deleted copy of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *service.Service) error {
				restored, err := svc.Store().Restore(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "♻️ %s を復元しました\n", restored)
				return nil
			})
		},
	})

	categoriesCmd.AddCommand(&cobra.Command{
		Use:   "trash",
		Short: "List deleted categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *service.Service) error {
				entries, err := svc.Store().Trash()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "ゴミ箱は空です")
					return nil
				}
				for _, e := range entries {
					fmt.Fprintf(out, "%s\t%s\t%s\n", e.Category, e.DeletedAt.Format("2006-01-02 15:04:05"), e.Name)
				}
				return nil
			})
		},
	})

	categoriesCmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Permanently remove trashed categories older than 30 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *service.Service) error {
				n, err := svc.Store().Purge(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d 件を完全に削除しました\n", n)
				return nil
			})
		},
	})

	return categoriesCmd
}

func listCategories(ctx *commandContext, cmd *cobra.Command) error {
	return ctx.withService(cmd, func(svc *service.Service) error {
		cats, err := svc.Store().Categories()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(cats) == 0 {
			fmt.Fprintln(out, "カテゴリがありません")
			return nil
		}
		for _, c := range cats {
			files, err := svc.Store().Files(c)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "📂 %s (%d)\n", c, len(files))
			for _, f := range files {
				fmt.Fprintf(out, "   %s\n", filepath.Base(f))
			}
		}
		return nil
	})
}
