package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/shapekit/core/formatter"
	"github.com/artpar/shapekit/core/shape"
)

var shapesCmd = &cobra.Command{
	Use:   "shapes",
	Short: "List loaded shapes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		f, err := getFormatter()
		if err != nil {
			return err
		}

		var descs []shape.Descriptor
		for _, name := range reg.List() {
			rec, _ := reg.Get(name)
			descs = append(descs, shape.Describe(rec))
		}
		return f.FormatShapes(cmd.OutOrStdout(), descs, formatter.FormatOptions{})
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <shape|type>",
	Short: "Show a shape and its fields",
	Long: `Show a shape and its fields.

The argument is a shape name or a type expression over loaded shapes.

Examples:
  shapekit describe Order
  shapekit describe 'map<array<Order>>' -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		f, err := getFormatter()
		if err != nil {
			return err
		}

		s, err := reg.Lookup(args[0])
		if err != nil {
			return fmt.Errorf("describe %s: %w", args[0], err)
		}
		return f.FormatShape(cmd.OutOrStdout(), shape.Describe(s), formatter.FormatOptions{})
	},
}

func init() {
	rootCmd.AddCommand(shapesCmd)
	rootCmd.AddCommand(describeCmd)
}
