package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sasbridge/internal/auth"
	"github.com/JonMunkholm/sasbridge/internal/config"
)

func (a *app) tokenCommand() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue an identity token for the remote listing endpoints",
		Long: `The token command signs an HS256 token for subject with JWT_SECRET, the
same secret the server verifies with. The token is printed to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config.AuthConfig
			if err := config.LoadSection(&cfg); err != nil {
				return err
			}
			if len(cfg.JWTSecret) < 32 {
				return errors.New("JWT_SECRET must be at least 32 bytes")
			}
			if ttl > 0 {
				cfg.TokenTTL = ttl
			}

			token, err := auth.NewIssuer([]byte(cfg.JWTSecret), cfg.Issuer, cfg.TokenTTL).Generate(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, token)
			return err
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: $JWT_TTL)")
	return cmd
}
