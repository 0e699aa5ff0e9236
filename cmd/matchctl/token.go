package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/maison/internal/adapters/http/api"
)

const envSecret = "MAISON_JWT_SECRET"

func (c *cli) tokenCmd() *cobra.Command {
	var profileID string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a profile, signed with " + envSecret,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if profileID == "" {
				return fmt.Errorf("%w: --profile", ErrMissingFlag)
			}
			token, err := api.IssueToken([]byte(os.Getenv(envSecret)), profileID, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVarP(&profileID, "profile", "p", "", "profile id placed in the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime (0 never expires)")
	return cmd
}
