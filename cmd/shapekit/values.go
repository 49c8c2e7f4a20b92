package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"

	"github.com/artpar/shapekit/core/formatter"
	"github.com/artpar/shapekit/core/jsoncodec"
	"github.com/artpar/shapekit/core/registry"
	"github.com/artpar/shapekit/domain/document"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <shape> [file|-]",
	Short: "Decode a value and write it back in canonical form",
	Long: `Decode a JSON (or JSONC) value with a shape's codec and write it back.

Fields are emitted in declared order, and absent optional fields are
dropped. Reads stdin when the file is omitted or "-".

Examples:
  shapekit normalize Order order.json
  cat order.json | shapekit normalize Order -o json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, mapper, value, err := readValue(cmd, args[0], args[1:])
		if err != nil {
			return err
		}

		out, err := mapper.Write(value)
		if err != nil {
			return fmt.Errorf("write %s: %w", args[0], err)
		}

		f, err := getFormatter()
		if err != nil {
			return err
		}
		return f.FormatValue(cmd.OutOrStdout(), out, formatter.FormatOptions{})
	},
}

var hashDigest string

var hashCmd = &cobra.Command{
	Use:   "hash <shape> [file|-]",
	Short: "Print the structural hash and content digest of a value",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, value, err := readValue(cmd, args[0], args[1:])
		if err != nil {
			return err
		}
		storage, err := reg.StorageMapper(args[0])
		if err != nil {
			return err
		}

		alg, err := document.ParseAlgorithm(hashDigest)
		if err != nil {
			return err
		}
		hashCode, err := reg.HashCode(args[0])
		if err != nil {
			return err
		}
		body, err := document.Encode(storage, value, document.EncodeOptions{Digest: alg})
		if err != nil {
			return fmt.Errorf("encode %s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "hash:    %s\n", document.FormatHash(hashCode(value)))
		fmt.Fprintf(out, "digest:  %s\n", body.Digest)
		return nil
	},
}

var equalsCmd = &cobra.Command{
	Use:   "equals <shape> <file> <file>",
	Short: "Compare two values for structural equality",
	Long: `Compare two values for structural equality under a shape.

Exits with status 1 when the values differ.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, a, err := readValue(cmd, args[0], args[1:2])
		if err != nil {
			return err
		}
		_, _, b, err := readValue(cmd, args[0], args[2:3])
		if err != nil {
			return err
		}

		equals, err := reg.Equals(args[0])
		if err != nil {
			return err
		}
		if !equals(a, b) {
			fmt.Fprintln(cmd.OutOrStdout(), "different")
			return errValuesDiffer
		}
		fmt.Fprintln(cmd.OutOrStdout(), "equal")
		return nil
	},
}

var errValuesDiffer = errors.New("values differ")

func init() {
	hashCmd.Flags().StringVar(&hashDigest, "digest", string(document.Blake2b), "digest algorithm (blake2b, blake3)")

	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(equalsCmd)
}

// readValue loads the registry and decodes the input named by rest (a path,
// "-" or nothing for stdin) with the mapper for name.
func readValue(cmd *cobra.Command, name string, rest []string) (*registry.Registry, jsoncodec.Mapper, any, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, nil, nil, err
	}
	mapper, err := reg.Mapper(name)
	if err != nil {
		return nil, nil, nil, err
	}

	data, err := readInput(cmd.InOrStdin(), rest)
	if err != nil {
		return nil, nil, nil, err
	}

	value, err := mapper.Unmarshal(jsonc.ToJSON(data))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read %s: %w", name, err)
	}
	return reg, mapper, value, nil
}

func readInput(stdin io.Reader, rest []string) ([]byte, error) {
	if len(rest) == 0 || rest[0] == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(rest[0])
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}
