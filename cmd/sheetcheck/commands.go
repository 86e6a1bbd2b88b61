package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheethealth/internal/config"
	"github.com/JonMunkholm/sheethealth/internal/core"
	"github.com/JonMunkholm/sheethealth/internal/handler"
	"github.com/JonMunkholm/sheethealth/internal/logging"
)

// errFailed makes the command exit non-zero without printing anything more.
var errFailed = errors.New("spreadsheet is not healthy")

func newValidateCmd() *cobra.Command {
	var (
		format   string
		sheet    string
		exitCode bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a spreadsheet against the configured rules",
		Long: `Validate a spreadsheet the same way the server does and print the result.

The file is base64-encoded into an event and passed through the request
handler, so the output is exactly the body the server would return.
Rules come from VALIDATION_REQUIRED_HEADERS and VALIDATION_UNIQUE_COLUMN.

Example: sheetcheck validate projects.xlsx --sheet Projects`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			level := "warn"
			if verbose {
				level = "debug"
			}
			h := newHandler(cfg, logging.New(cmd.ErrOrStderr(), level, cfg.Logging.Format))

			resp, err := runValidate(cmd.Context(), h, cmd.OutOrStdout(), args[0], format, sheet)
			if err != nil {
				return err
			}
			if exitCode && resp.StatusCode != 200 {
				return errFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "File format: xlsx or csv (default: from the file extension)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (default: VALIDATION_SHEET or the first sheet)")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Exit with status 1 when the spreadsheet is not healthy")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log each step to stderr")

	return cmd
}

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the rules loaded from the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Required headers (in order):")
			for i, h := range cfg.Validation.RequiredHeaders {
				fmt.Fprintf(out, "  %d. %s\n", i+1, h)
			}
			fmt.Fprintf(out, "Unique column: %s\n", cfg.Validation.UniqueColumn)
			if cfg.Validation.Sheet != "" {
				fmt.Fprintf(out, "Sheet: %s\n", cfg.Validation.Sheet)
			}
			return nil
		},
	}
}

func newHandler(cfg *config.Config, logger *slog.Logger) *handler.Handler {
	return handler.New(handler.Config{
		Rules: core.Rules{
			RequiredHeaders: cfg.Validation.RequiredHeaders,
			UniqueColumn:    cfg.Validation.UniqueColumn,
		},
		Sheet:    cfg.Validation.Sheet,
		MaxBytes: cfg.Upload.MaxFileSize,
		Logger:   logger,
	})
}

// runValidate reads path, builds the event, invokes h and writes the
// indented body to out.
func runValidate(ctx context.Context, h *handler.Handler, out io.Writer, path, format, sheet string) (handler.Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return handler.Response{}, fmt.Errorf("the file '%s' was not found", path)
		}
		return handler.Response{}, fmt.Errorf("read %s: %w", path, err)
	}

	if format == "" && strings.EqualFold(filepath.Ext(path), ".csv") {
		format = string(core.FormatCSV)
	}

	resp := h.Handle(ctx, handler.Request{
		FileBase64: base64.StdEncoding.EncodeToString(data),
		Format:     format,
		Sheet:      sheet,
	})

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(resp.Body), "", "  "); err != nil {
		return resp, fmt.Errorf("format response: %w", err)
	}
	pretty.WriteByte('\n')

	if _, err := pretty.WriteTo(out); err != nil {
		return resp, err
	}
	return resp, nil
}
