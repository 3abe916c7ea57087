package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gend/internal/textproc"
)

// readInput returns the joined args, or stdin when no args are given.
func readInput(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func convertCmd(use, short string, convert func(string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:     use + " [text]",
		Short:   short,
		Example: fmt.Sprintf("  gendctl %s '[^a-z]+'\n  cat rules.gbnf | gendctl %s", use, use),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args)
			if err != nil {
				return err
			}
			out, err := convert(in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gendctl",
		Short:         "Offline helpers for gend pattern and grammar preprocessing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		convertCmd("pattern", "Expand negated character classes in a regex pattern", textproc.PreprocessPattern),
		convertCmd("grammar", "Normalize escapes and codepoint references in a GBNF grammar", textproc.PreprocessGrammar),
	)
	return root
}

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
