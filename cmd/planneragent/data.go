package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"planner-agent/internal/model"
	"planner-agent/internal/repository"
)

func openRepository() (*repository.EntryRepository, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := repository.NewDB(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("db: %w", err)
	}
	return repository.NewEntryRepository(db), func() { _ = repository.Close(db) }, nil
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [category]",
		Short: "Print stored entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var only model.Category
			if len(args) == 1 {
				c, err := model.ParseCategory(args[0])
				if err != nil {
					return err
				}
				only = c
			}

			repo, closeDB, err := openRepository()
			if err != nil {
				return err
			}
			defer closeDB()

			entries, err := repo.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				if only != "" && e.Category != only {
					continue
				}
				line := fmt.Sprintf("%-12s %-12d %s", e.Category, e.ID, e.Title)
				if !e.Timestamp.IsZero() {
					line += "  @" + string(e.Timestamp)
				}
				if tags := model.HashTags(e.Tags); len(tags) > 0 {
					line += "  " + strings.Join(tags, " ")
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all entries as a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, closeDB, err := openRepository()
			if err != nil {
				return err
			}
			defer closeDB()

			entries, err := repo.ListAll(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return repository.NewDocument(entries).Encode(w)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Upsert entries from a JSON document (current or legacy layout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			doc, err := repository.DecodeDocument(f)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			repo, closeDB, err := openRepository()
			if err != nil {
				return err
			}
			defer closeDB()

			doc.FillIDs(time.Now())
			entries := doc.Entries()
			if err := repo.Upsert(cmd.Context(), entries); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries\n", len(entries))
			return nil
		},
	}
}
