package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/follow-the-money/internal/cli"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage the category vocabulary",
		Long:  `List, add, activate, deactivate, and delete the categories used for classification.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(setCategoryActiveCmd("activate", true))
	cmd.AddCommand(setCategoryActiveCmd("deactivate", false))
	cmd.AddCommand(deleteCategoryCmd())
	cmd.AddCommand(seedCategoriesCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	var includeInactive bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categories, err := store.GetCategories(ctx, includeInactive)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			fmt.Println(cli.RenderCategoriesTable(categories))
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeInactive, "all", false, "Include deactivated categories")

	return cmd
}

func addCategoryCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			category, err := store.CreateCategory(ctx, args[0], description)
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Category %q ready (id %d)", category.Name, category.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Category description")

	return cmd
}

func setCategoryActiveCmd(use string, active bool) *cobra.Command {
	short := "Reactivate a category"
	if !active {
		short = "Deactivate a category (existing expenses keep it)"
	}

	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid category id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SetCategoryActive(ctx, id, active); err != nil {
				return fmt.Errorf("failed to update category: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Category %d updated", id)))
			return nil
		},
	}
}

func deleteCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category (fails while expenses reference it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid category id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteCategory(ctx, id); err != nil {
				return fmt.Errorf("failed to delete category: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Category %d deleted", id)))
			return nil
		},
	}
}

func seedCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the default category vocabulary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			// initStorage already seeds; this just reports the result.
			categories, err := store.GetCategories(ctx, true)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%d categories in the vocabulary", len(categories))))
			return nil
		},
	}
}
