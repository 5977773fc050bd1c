// Command duppy-keygen generates a TSIG key for use with nsupdate or
// duppy-go's own admin API, grounded on internal/helper's random-key
// generators that the teacher used for the same purpose.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagekite/duppy-go/internal/helper"
)

func main() {
	var algorithm string

	rootCmd := &cobra.Command{
		Use:   "duppy-keygen [key-name]",
		Short: "Generate a random TSIG key for duppy-go or nsupdate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			var secret string
			var err error
			switch algorithm {
			case "hmac-sha256":
				secret, err = helper.GenerateTSIGKeyHMACSHA256()
			case "hmac-sha512":
				secret, err = helper.GenerateTSIGKeyHMACSHA512()
			default:
				return fmt.Errorf("unsupported algorithm %q (want hmac-sha256 or hmac-sha512)", algorithm)
			}
			if err != nil {
				return fmt.Errorf("generating key: %w", err)
			}

			fmt.Printf("key %q {\n\talgorithm %s;\n\tsecret %q;\n};\n", name, algorithm, secret)
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&algorithm, "algorithm", "a", "hmac-sha256", "TSIG algorithm (hmac-sha256, hmac-sha512)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
