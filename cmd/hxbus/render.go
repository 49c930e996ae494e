package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pthm/hxbus/lib/decl"
	"github.com/pthm/hxbus/lib/expr"
)

var renderCmd = &cobra.Command{
	Use:   "render FILE",
	Short: "Render a page declaration to stdout",
	Long: `Renders one declaration as HTML. Expressions are evaluated with the
parameters given by --param.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, _ := cmd.Flags().GetStringToString("param")
		return runRender(cmd.Context(), cmd.OutOrStdout(), args[0], params)
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringToString("param", nil, "Request parameter exposed as .params.NAME (repeatable)")
}

func runRender(ctx context.Context, w io.Writer, file string, params map[string]string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	doc, err := decl.LoadFile(file)
	if err != nil {
		return err
	}
	page, err := doc.NewPage()
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	p := make(map[string]any, len(params))
	for k, v := range params {
		p[k] = v
	}
	eval := expr.New().Bind(map[string]any{"params": p})

	if err := page.Render(ctx, w, eval); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	_, err = io.WriteString(w, "\n")
	return err
}
