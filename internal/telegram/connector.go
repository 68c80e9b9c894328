// Package telegram connects to the Telegram MTProto API and exposes it
// through the fetch and media interfaces.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"github.com/medlake/medlake/internal/config"
	"github.com/medlake/medlake/internal/logger"
)

// CodePrompt asks the operator for the login code Telegram sent them.
type CodePrompt func(ctx context.Context) (string, error)

// Connector owns the MTProto client lifecycle: session persistence, the
// interactive first-run login, and handing a live Session to the caller.
type Connector struct {
	cfg    config.TelegramConfig
	prompt CodePrompt
	log    logger.Logger
}

// NewConnector creates a connector. prompt is only invoked when the stored
// session is missing or expired.
func NewConnector(cfg config.TelegramConfig, prompt CodePrompt, log logger.Logger) (*Connector, error) {
	if cfg.APIID == 0 || strings.TrimSpace(cfg.APIHash) == "" {
		return nil, errors.New("telegram: api credentials are required")
	}
	if prompt == nil {
		return nil, errors.New("telegram: code prompt is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Connector{cfg: cfg, prompt: prompt, log: log}, nil
}

// Run connects, ensures the session is authorized, and invokes fn with a
// Session bound to the live connection. The connection closes when fn
// returns.
func (c *Connector) Run(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	if dir := filepath.Dir(c.cfg.SessionFile); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
	}

	client := telegram.NewClient(c.cfg.APIID, c.cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: c.cfg.SessionFile},
	})

	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}

		if !status.Authorized {
			if strings.TrimSpace(c.cfg.Phone) == "" {
				return errors.New("telegram: no stored session and no phone number to log in with")
			}
			c.log.Info("no valid session, starting interactive login",
				logger.String("session_file", c.cfg.SessionFile))

			flow := auth.NewFlow(userAuth{phone: c.cfg.Phone, prompt: c.prompt}, auth.SendCodeOptions{})
			if err := flow.Run(ctx, client.Auth()); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			c.log.Info("login complete, session stored")
		} else {
			c.log.Debug("reusing stored session")
		}

		return fn(ctx, newSession(tg.NewClient(client), c.log))
	})
}

// userAuth feeds the login flow. Only code-based login is supported; an
// account with a 2FA password needs its session provisioned elsewhere.
type userAuth struct {
	phone  string
	prompt CodePrompt
}

func (a userAuth) Phone(_ context.Context) (string, error) {
	return a.phone, nil
}

func (a userAuth) Password(_ context.Context) (string, error) {
	return "", auth.ErrPasswordNotProvided
}

func (a userAuth) Code(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.prompt(ctx)
}

func (a userAuth) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return nil
}

func (a userAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("telegram: account sign-up is not supported")
}
