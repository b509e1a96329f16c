package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/sakif/tweetsync/internal/apperror"
	"github.com/sakif/tweetsync/internal/config"
	"github.com/sakif/tweetsync/internal/twitter"
)

// TokenExchanger is the three-legged OAuth 1.0a capability of the client.
type TokenExchanger interface {
	RequestToken(ctx context.Context, callbackURL string) (map[string]string, error)
	AuthorizeURL(requestToken string) string
	AccessToken(ctx context.Context, token, tokenSecret, verifier string) (map[string]string, error)
}

// ExchangerFactory builds a TokenExchanger from consumer credentials.
type ExchangerFactory func(cfg config.Twitter) (TokenExchanger, error)

// NewExchangerFactory returns a factory of real twitter clients signing with
// consumer credentials only.
func NewExchangerFactory(limiter *rate.Limiter, logger *slog.Logger) ExchangerFactory {
	return func(cfg config.Twitter) (TokenExchanger, error) {
		cfg.AccessToken, cfg.AccessTokenSecret = "", ""
		return twitter.New(TwitterClientConfig(cfg, limiter, logger))
	}
}

// LiveConfig is a config snapshot holder that can be replaced. *config.Live
// satisfies it.
type LiveConfig interface {
	Get() config.Config
	Set(config.Config)
}

// RequestTokenResult is step one of the handshake.
type RequestTokenResult struct {
	Token             string            `json:"oauthToken"`
	TokenSecret       string            `json:"-"`
	CallbackConfirmed bool              `json:"callbackConfirmed"`
	AuthorizeURL      string            `json:"authorizeUrl"`
	Params            map[string]string `json:"-"`
}

// HandshakeService runs the OAuth 1.0a dance that gives tweetsync a user
// access token:
//
//	RequestToken  → temporary token + URL the admin opens on twitter.com
//	(admin approves, twitter redirects back with oauth_verifier)
//	AccessToken   → permanent token pair, saved to the config file
type HandshakeService struct {
	live         LiveConfig
	configPath   string
	newExchanger ExchangerFactory
	logger       *slog.Logger
}

// NewHandshakeService creates the service. configPath may be empty, in which
// case access tokens only live in memory.
func NewHandshakeService(live LiveConfig, configPath string, newExchanger ExchangerFactory, logger *slog.Logger) *HandshakeService {
	return &HandshakeService{
		live:         live,
		configPath:   configPath,
		newExchanger: newExchanger,
		logger:       logger,
	}
}

func (s *HandshakeService) exchanger() (TokenExchanger, error) {
	cfg := s.live.Get().Twitter
	if !cfg.Configured() {
		return nil, apperror.NotConfigured("twitter consumer key and secret are not configured")
	}
	return s.newExchanger(cfg)
}

// RequestToken obtains a temporary request token and the authorization URL
// to send the admin to.
func (s *HandshakeService) RequestToken(ctx context.Context, callbackURL string) (*RequestTokenResult, error) {
	ex, err := s.exchanger()
	if err != nil {
		return nil, err
	}

	params, err := ex.RequestToken(ctx, callbackURL)
	if err != nil {
		return nil, err
	}
	token := params["oauth_token"]
	if token == "" {
		return nil, apperror.Malformed("request token response has no oauth_token", nil)
	}

	return &RequestTokenResult{
		Token:             token,
		TokenSecret:       params["oauth_token_secret"],
		CallbackConfirmed: params["oauth_callback_confirmed"] == "true",
		AuthorizeURL:      ex.AuthorizeURL(token),
		Params:            params,
	}, nil
}

// AccessToken exchanges an approved request token for the permanent pair,
// persists it and swaps it into the live config so the next pass signs
// with it. The extracted response parameters are returned.
func (s *HandshakeService) AccessToken(ctx context.Context, token, tokenSecret, verifier string) (map[string]string, error) {
	if token == "" {
		return nil, apperror.ValidationFailed("oauth_token", "oauth_token is required")
	}
	if verifier == "" {
		return nil, apperror.ValidationFailed("oauth_verifier", "oauth_verifier is required")
	}

	ex, err := s.exchanger()
	if err != nil {
		return nil, err
	}

	params, err := ex.AccessToken(ctx, token, tokenSecret, verifier)
	if err != nil {
		return nil, err
	}
	access, secret := params["oauth_token"], params["oauth_token_secret"]
	if access == "" || secret == "" {
		return nil, apperror.Malformed("access token response lacks oauth_token or oauth_token_secret", nil)
	}

	if err := s.store(access, secret); err != nil {
		return nil, err
	}

	s.logger.Info("twitter access token stored",
		slog.String("screen_name", params["screen_name"]),
		slog.String("user_id", params["user_id"]),
	)
	return params, nil
}

func (s *HandshakeService) store(token, secret string) error {
	if s.configPath != "" {
		err := config.Update(s.configPath, func(c *config.Config) {
			c.Twitter.AccessToken = token
			c.Twitter.AccessTokenSecret = secret
		})
		if err != nil {
			return fmt.Errorf("service/handshake: saving access token: %w", err)
		}
	}

	cfg := s.live.Get()
	cfg.Twitter.AccessToken = token
	cfg.Twitter.AccessTokenSecret = secret
	s.live.Set(cfg)
	return nil
}
