package command

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/tweetsync/internal/config"
	"github.com/sakif/tweetsync/internal/server"
	"github.com/sakif/tweetsync/internal/service"
)

// NewOAuthCmd runs the OAuth 1.0a handshake from a terminal, using the
// out-of-band (PIN) flow:
//
//	tweetsync oauth request-token        → open the printed URL, approve, note the PIN
//	tweetsync oauth access-token --token T --secret S --verifier PIN
func NewOAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oauth",
		Short: "Connect tweetsync to a Twitter account",
	}
	cmd.AddCommand(newRequestTokenCmd(), newAccessTokenCmd())
	return cmd
}

func handshakeService(cmd *cobra.Command) (*service.HandshakeService, error) {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log, cmd.ErrOrStderr())
	if _, err := os.Stat(path); err != nil {
		path = ""
		logger.Warn("config file not found; the access token will not be saved")
	}
	factory := service.NewExchangerFactory(server.NewLimiter(cfg.Twitter), logger)
	return service.NewHandshakeService(config.NewLive(cfg), path, factory, logger), nil
}

func newRequestTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request-token",
		Short: "Obtain a request token and print the authorization URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := handshakeService(cmd)
			if err != nil {
				return err
			}
			callback, _ := cmd.Flags().GetString("callback")

			res, err := svc.RequestToken(cmd.Context(), callback)
			if err != nil {
				return err
			}
			writeLine(cmd, "authorize: %s", res.AuthorizeURL)
			writeLine(cmd, "token:     %s", res.Token)
			writeLine(cmd, "secret:    %s", res.TokenSecret)
			return nil
		},
	}
	cmd.Flags().String("callback", "oob", "callback URL; oob shows a PIN instead of redirecting")
	return cmd
}

func newAccessTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access-token",
		Short: "Exchange an authorized request token and save the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := handshakeService(cmd)
			if err != nil {
				return err
			}
			token, _ := cmd.Flags().GetString("token")
			secret, _ := cmd.Flags().GetString("secret")
			verifier, _ := cmd.Flags().GetString("verifier")

			params, err := svc.AccessToken(cmd.Context(), token, secret, verifier)
			if err != nil {
				return err
			}
			writeLine(cmd, "connected as @%s (user id %s)", params["screen_name"], params["user_id"])
			return nil
		},
	}
	cmd.Flags().String("token", "", "request token from request-token")
	cmd.Flags().String("secret", "", "request token secret from request-token")
	cmd.Flags().String("verifier", "", "PIN or oauth_verifier shown by Twitter")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("verifier")
	return cmd
}
