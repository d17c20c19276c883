package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	service "github.com/okian/bookmatch/internal/app"
	"github.com/okian/bookmatch/internal/domain/model"
)

func newMatchCmd(a *app) *cobra.Command {
	var (
		input  string
		output string
		userID string
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Run one sync pass over a JSON array of source books",
		Example: `  # Match books for the configured user and print the report
  bookmatch match --input books.json

  # Read from stdin and write the report to a file
  cat books.json | bookmatch match --input - --output report.json --user 42`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			books, err := readBooks(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}

			svc := service.New(a.cfg, service.WithLogger(a.log.Named("service")))
			if err := svc.Start(cmd.Context()); err != nil {
				return err
			}
			defer svc.Stop()

			report, err := svc.SyncPass(cmd.Context(), userID, books)
			if report != nil {
				if werr := writeReport(cmd.OutOrStdout(), output, report); werr != nil {
					return werr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON file of source books, - for stdin")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report here instead of stdout")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "destination user id (overrides BOOKMATCH_USER_ID)")
	return cmd
}

func readBooks(stdin io.Reader, path string) ([]*model.SourceBook, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	var books []*model.SourceBook
	if err := json.NewDecoder(r).Decode(&books); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}
	return books, nil
}

func writeReport(stdout io.Writer, path string, report *service.PassReport) (err error) {
	w := stdout
	if path != "" {
		f, cerr := os.Create(path)
		if cerr != nil {
			return fmt.Errorf("create output: %w", cerr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close output: %w", cerr)
			}
		}()
		w = f
	}
	return encodeReport(w, report)
}

func encodeReport(w io.Writer, report *service.PassReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
