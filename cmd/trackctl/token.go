package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/BearBump/CrewTrack/config"
	"github.com/BearBump/CrewTrack/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		secret     string
		issuer     string
		role       string
		subject    string
		team       string
		job        string
		jobType    string
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed bearer token for development and ops use",
		Example: `  trackctl token --role admin
  trackctl token --role crew --team team-7
  trackctl token --role client --job 3f2c... --job-type move --ttl 72h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				cfg, err := config.LoadConfig(configPath)
				if err != nil {
					return err
				}
				if secret == "" {
					secret = cfg.Auth.JWTSecret
				}
				if issuer == "" {
					issuer = cfg.Auth.Issuer
				}
			}
			a, err := auth.New(secret, issuer)
			if err != nil {
				return err
			}

			var tok string
			switch auth.Role(role) {
			case auth.RoleClient:
				jt, err := parseJobType(jobType)
				if err != nil {
					return err
				}
				tok, err = a.IssueTrackingToken(job, jt, ttl)
				if err != nil {
					return err
				}
			case auth.RoleAdmin, auth.RoleCrew:
				if auth.Role(role) == auth.RoleCrew && team == "" {
					return errors.New("--team is required for crew tokens")
				}
				if subject == "" {
					subject = role + "-cli"
				}
				tok, err = a.Issue(auth.Identity{Subject: subject, Role: auth.Role(role), TeamID: team}, ttl)
				if err != nil {
					return err
				}
			default:
				return errors.Errorf("unknown role %q", role)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("configPath"), "config file to read the signing secret from")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("CREWTRACK_JWT_SECRET"), "HS256 signing secret")
	cmd.Flags().StringVar(&issuer, "issuer", "", "token issuer")
	cmd.Flags().StringVar(&role, "role", "admin", "admin, crew or client")
	cmd.Flags().StringVar(&subject, "subject", "", "token subject")
	cmd.Flags().StringVar(&team, "team", "", "crew team id")
	cmd.Flags().StringVar(&job, "job", "", "job id for client tokens")
	cmd.Flags().StringVar(&jobType, "job-type", "move", "job type for client tokens")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
