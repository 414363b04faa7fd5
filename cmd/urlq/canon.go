package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/urlq-dev/urlq/pkg/query"
)

func canonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "canon <query-string>",
		Short: "Print the canonical form of a query string",
		Long: `Print the canonical form of a query string.

Keys are sorted and values percent-encoded, so two strings describing
the same state canonicalize identically. Useful for comparing URLs in
scripts and tests.

Examples:
  urlq canon "b=2&a=1"
  urlq canon "?q=hello world&page=1"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(query.Parse(args[0]).Encode())
			return nil
		},
	}
}
