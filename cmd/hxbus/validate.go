package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pthm/hxbus"
	"github.com/pthm/hxbus/lib/decl"
)

var validateCmd = &cobra.Command{
	Use:   "validate [PATTERN]",
	Short: "Check page declarations for consistency",
	Long: `Parses every declaration matching PATTERN (default: server.pages) under
--dir, checks required attributes, and renders each page once to report
references that do not resolve.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		pattern := cfg.Server.Pages
		if len(args) > 0 {
			pattern = args[0]
		}
		dir, _ := cmd.Flags().GetString("dir")
		return runValidate(cmd.Context(), cmd.OutOrStdout(), dir, pattern)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(ctx context.Context, w io.Writer, dir, pattern string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	docs, err := decl.LoadGlob(os.DirFS(dir), pattern)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no declarations match %q in %s", pattern, dir)
	}

	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)

	reg := hxbus.NewRegistry()
	var errs []error
	for _, name := range names {
		if err := checkPage(ctx, docs[name], reg); err != nil {
			fmt.Fprintf(w, "FAIL %s\n", name)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		fmt.Fprintf(w, "ok   %s\n", name)
	}
	return errors.Join(errs...)
}

// checkPage validates a declaration and renders it once with literal
// evaluation, which surfaces unresolved references.
func checkPage(ctx context.Context, doc *decl.Document, reg *hxbus.Registry) error {
	if err := doc.Validate(reg); err != nil {
		return err
	}
	page, err := doc.NewPage(hxbus.WithRegistry(reg))
	if err != nil {
		return err
	}
	return page.Render(ctx, io.Discard, nil)
}
