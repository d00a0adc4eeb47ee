package main

import (
	"github.com/spf13/cobra"

	"github.com/Veraticus/follow-the-money/internal/tui"
)

func browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse expenses interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return tui.Browse(ctx, store)
		},
	}
}
