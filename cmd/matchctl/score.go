package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/maison/internal/domain/errs"
	"github.com/okian/maison/internal/domain/model"
	"github.com/okian/maison/pkg/logger"
)

func (c *cli) scoreCmd() *cobra.Command {
	var talentPath, opportunityPath string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one talent against one opportunity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if talentPath == "" || opportunityPath == "" {
				return fmt.Errorf("%w: --talent and --opportunity", ErrMissingFlag)
			}
			rawTalent, err := readTalent(talentPath)
			if err != nil {
				return err
			}
			rawOpportunity, err := readOpportunity(opportunityPath)
			if err != nil {
				return err
			}
			talent, err := c.normalizer.Talent(rawTalent)
			if err != nil {
				return fmt.Errorf("%w: talent: %s", ErrInvalidInput, errs.Message(err))
			}
			opportunity, err := c.normalizer.Opportunity(rawOpportunity)
			if err != nil {
				return fmt.Errorf("%w: opportunity: %s", ErrInvalidInput, errs.Message(err))
			}
			result := c.engine.Calculate(talent, opportunity)
			c.log.Debug(cmd.Context(), "scored",
				logger.String("talent_id", result.TalentID),
				logger.Int("score", result.OverallScore))
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&talentPath, "talent", "t", "", "talent record file (yaml or json)")
	cmd.Flags().StringVarP(&opportunityPath, "opportunity", "o", "", "opportunity record file (yaml or json)")
	return cmd
}

func (c *cli) rankCmd() *cobra.Command {
	var poolPath, opportunityPath string
	var limit int
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank a talent pool against one opportunity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if poolPath == "" || opportunityPath == "" {
				return fmt.Errorf("%w: --talents and --opportunity", ErrMissingFlag)
			}
			rawPool, err := readTalentPool(poolPath)
			if err != nil {
				return err
			}
			rawOpportunity, err := readOpportunity(opportunityPath)
			if err != nil {
				return err
			}
			opportunity, err := c.normalizer.Opportunity(rawOpportunity)
			if err != nil {
				return fmt.Errorf("%w: opportunity: %s", ErrInvalidInput, errs.Message(err))
			}
			pool := make([]model.TalentProfile, 0, len(rawPool))
			for i, raw := range rawPool {
				t, err := c.normalizer.Talent(raw)
				if err != nil {
					return fmt.Errorf("%w: talents[%d]: %s", ErrInvalidInput, i, errs.Message(err))
				}
				pool = append(pool, t)
			}
			ranked := c.engine.Rank(opportunity, pool)
			if limit > 0 && len(ranked) > limit {
				ranked = ranked[:limit]
			}
			c.log.Debug(cmd.Context(), "ranked", logger.Int("pool", len(pool)), logger.Int("shown", len(ranked)))
			return writeJSON(cmd.OutOrStdout(), ranked)
		},
	}
	cmd.Flags().StringVar(&poolPath, "talents", "", "file holding a talents list (yaml or json)")
	cmd.Flags().StringVarP(&opportunityPath, "opportunity", "o", "", "opportunity record file (yaml or json)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the top n matches (0 shows all)")
	return cmd
}
