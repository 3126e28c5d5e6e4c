package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/regalert/internal/model"
	"github.com/jmylchreest/regalert/internal/theme"
)

var styleCmd = &cobra.Command{
	Use:   "style [variant...]",
	Short: "Show the presentation class for toast variants",
	Long: `Show the presentation class assigned to alerts of each toast variant,
rendered with the configured popover palette.

Without arguments, every known variant is listed. Unknown variants resolve
the same way as an empty one.`,
	RunE: runStyle,
}

func init() {
	rootCmd.AddCommand(styleCmd)
}

func runStyle(cmd *cobra.Command, args []string) error {
	variants := model.Variants()
	if len(args) > 0 {
		variants = make([]model.Variant, 0, len(args))
		for _, a := range args {
			variants = append(variants, model.Variant(a))
		}
	}

	styles := theme.NewStyles(cfg.Popover.Palette)
	for _, v := range variants {
		class := theme.Resolve(v)
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", v, styles.Class(class).Render(class))
	}
	return nil
}
