package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/follow-the-money/internal/cli"
	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/ofx"
)

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <statement.ofx>",
		Short: "Classify a statement without saving anything",
		Long: `Parse an OFX/QFX statement and show which category each transaction would
land in. Nothing is written to the expense ledger; classifications are still
cached so a later import reuses them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			records, err := parseStatement(args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println(cli.FormatWarning("No transactions in statement"))
				return nil
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng, closeEngine, err := newEngine(store)
			if err != nil {
				return err
			}
			defer closeEngine()

			bar := newProgressBar(len(records), "Classifying transactions...")

			names := make([]string, 0, len(records))
			nameByID := make(map[int64]string)
			for _, record := range records {
				ids, err := eng.ClassifyRecords(ctx, []model.Record{record})
				if err != nil {
					return fmt.Errorf("classification failed: %w", err)
				}

				name, ok := nameByID[ids[0]]
				if !ok {
					category, err := store.GetCategoryByID(ctx, ids[0])
					if err != nil {
						return fmt.Errorf("failed to look up category: %w", err)
					}
					name = model.FallbackCategoryName
					if category != nil {
						name = category.Name
					}
					nameByID[ids[0]] = name
				}
				names = append(names, name)
				_ = bar.Add(1)
			}

			fmt.Println()
			for i, record := range records {
				fmt.Printf("%s  %-40s %10.2f  %s\n",
					record.Date.Format(model.DateFormat),
					record.Description,
					record.Amount,
					cli.InfoStyle.Render(names[i]))
			}

			return nil
		},
	}
}

// parseStatement reads an OFX/QFX file into records.
func parseStatement(path string) ([]model.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open statement: %w", err)
	}
	defer func() { _ = file.Close() }()

	records, err := ofx.NewParser().ParseFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse statement: %w", err)
	}
	return records, nil
}

// newProgressBar creates a progress bar with the shared theme.
func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
