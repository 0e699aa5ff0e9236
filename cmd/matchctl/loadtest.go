package main

import (
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/maison/internal/adapters/http/api"
	"github.com/okian/maison/internal/domain/normalize"
	"github.com/okian/maison/internal/loadtest"
)

const loadtestTokenTTL = time.Hour

// defaultOpportunity is scored when no --opportunity file is given.
func defaultOpportunity() normalize.RawOpportunity {
	return normalize.RawOpportunity{
		ID:                      "loadtest-opportunity",
		BrandID:                 "loadtest-brand",
		BrandName:               "Hermès",
		RoleLevel:               "L3",
		Division:                "Leather Goods",
		City:                    "Paris",
		Country:                 "France",
		RequiredExperienceYears: 3,
		RequiredLanguages:       []string{"fr", "en"},
	}
}

func (c *cli) loadtestCmd() *cobra.Command {
	cfg := &loadtest.Config{}
	var opportunityPath, profileID string
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive a running server with generated talents and verify its rankings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Opportunity = defaultOpportunity()
			if opportunityPath != "" {
				o, err := readOpportunity(opportunityPath)
				if err != nil {
					return err
				}
				cfg.Opportunity = o
			}
			token, err := api.IssueToken([]byte(os.Getenv(envSecret)), profileID, loadtestTokenTTL)
			if err != nil {
				return err
			}
			cfg.Token = token
			report, err := loadtest.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report.Stats)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	f.IntVar(&cfg.NumTalents, "count", 200, "number of talents to generate")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "number of concurrent workers")
	f.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "HTTP request timeout")
	f.StringVar(&cfg.OutputFile, "output", "", "write the generated talents to this file")
	f.StringVarP(&opportunityPath, "opportunity", "o", "", "opportunity record file (yaml or json)")
	f.StringVar(&profileID, "profile", "loadtest", "profile id the bearer token is issued for")
	return cmd
}
