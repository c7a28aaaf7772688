package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"studyquiz-service/internal/config"
	transport "studyquiz-service/internal/transport/http"
)

// NewTokenCmd signs a bearer token with the configured secret, for local use.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			secret := cfg.Auth.JWTSecret
			if secret == "" {
				secret = devJWTSecret
			}
			token, err := transport.NewAuthenticator(secret).IssueToken(subject, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "learner id to embed")
	cmd.Flags().StringVar(&role, "role", transport.RoleStudent, "student, teacher or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
