package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/maison/internal/domain/access"
)

type checkResult struct {
	Role    access.Role   `json:"role"`
	Action  access.Action `json:"action"`
	Allowed bool          `json:"allowed"`
}

func (c *cli) checkCmd() *cobra.Command {
	var (
		role, action       string
		scope, target      access.Scope
		allDivs, targetAll bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a role and scope permit an action on a target scope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := access.ParseRole(role)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidInput, err)
			}
			a, err := access.ParseAction(action)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidInput, err)
			}
			scope.AllDivisions = allDivs
			target.AllDivisions = targetAll
			if err := scope.Validate(); err != nil {
				return fmt.Errorf("%w: scope: %w", ErrInvalidInput, err)
			}
			if err := target.Validate(); err != nil {
				return fmt.Errorf("%w: target: %w", ErrInvalidInput, err)
			}
			allowed := access.CheckPermission(access.Actor{Role: r, Scope: scope}, a, target)
			return writeJSON(cmd.OutOrStdout(), checkResult{Role: r, Action: a, Allowed: allowed})
		},
	}
	f := cmd.Flags()
	f.StringVar(&role, "role", "", "team role")
	f.StringVar(&action, "action", "", "action to check")
	f.StringVar(&scope.Geographic, "geo", access.GeoGlobal, "geographic scope of the role")
	f.StringSliceVar(&scope.Divisions, "divisions", nil, "divisions the role covers")
	f.BoolVar(&allDivs, "all-divisions", false, "the role covers every division")
	f.StringVar(&target.Geographic, "target-geo", access.GeoGlobal, "geographic scope of the target")
	f.StringSliceVar(&target.Divisions, "target-divisions", nil, "divisions of the target")
	f.BoolVar(&targetAll, "target-all-divisions", false, "the target spans every division")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}
