package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mychat/chatlink/pkg/chatlink/api"
	"github.com/mychat/chatlink/pkg/chatlink/config"
	"go.uber.org/zap"
)

// Environment variables consulted when the matching flag is not set.
const (
	EnvOrigin = "CHATLINK_ORIGIN"
	EnvToken  = "CHATLINK_TOKEN"
	EnvAPIURL = "CHATLINK_API_URL"
)

// overrides holds the connection values given on the command line.
type overrides struct {
	Origin  string
	Token   string
	APIURL  string
	Session string
}

type settings struct {
	logger *zap.Logger
	cfg    *config.Config
	conn   config.ConnectionConfig
	apiURL string
}

// loadSettings reads the configuration sources and sets up the logger.
func loadSettings(sessionID string) (*settings, error) {
	cfg, diags := config.NewConfig().
		WithSources(stringSliceToAnySlice(configPaths)...).
		Build()
	if diags.HasErrors() {
		return nil, diags
	}

	logger, err := setupLogger(resolveLogLevel(logLevel, cfg.LogLevel, GetDebug(), GetVerbose()))
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	cfg.Logger = logger

	o := overrides{
		Origin:  originFlag,
		Token:   tokenFlag,
		APIURL:  apiURLFlag,
		Session: sessionID,
	}

	return &settings{
		logger: logger,
		cfg:    cfg,
		conn:   resolveConnection(cfg.Connection, o, os.Getenv),
		apiURL: resolveAPIURL(cfg.API, o, os.Getenv),
	}, nil
}

// resolveConnection layers flags over the environment over the configuration.
// An origin from flags or environment replaces a configured host.
func resolveConnection(cc config.ConnectionConfig, o overrides, getenv func(string) string) config.ConnectionConfig {
	origin := firstNonEmpty(o.Origin, getenv(EnvOrigin))
	if origin != "" {
		cc.Origin = strings.TrimSpace(origin)
		cc.Host = ""
		cc.Secure = false
	}

	if token := firstNonEmpty(o.Token, getenv(EnvToken)); token != "" {
		cc.Token = strings.TrimSpace(token)
	}

	if o.Session != "" {
		cc.Session = o.Session
	}

	return cc
}

// resolveAPIURL returns the REST base URL. When none is given it is derived
// from the connection origin by the api client builder, so "" is returned.
func resolveAPIURL(ac config.APIConfig, o overrides, getenv func(string) string) string {
	return strings.TrimSpace(firstNonEmpty(o.APIURL, getenv(EnvAPIURL), ac.BaseURL))
}

// apiClient builds a REST client from the resolved settings.
func (s *settings) apiClient() (*api.Client, error) {
	b := api.NewClient().
		WithToken(s.conn.Token).
		WithTimeout(s.cfg.API.Timeout).
		WithLogger(s.logger)

	switch {
	case s.apiURL != "":
		b.WithBaseURL(s.apiURL)
	case s.conn.Origin != "":
		b.WithOrigin(s.conn.Origin)
	case s.conn.Host != "":
		scheme := "http://"
		if s.conn.Secure {
			scheme = "https://"
		}
		b.WithOrigin(scheme + s.conn.Host)
	}

	client, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, nil
}

// commandTimeout bounds all API calls made by one command. History can take
// several requests, each bounded by the client timeout.
const commandTimeout = 2 * time.Minute

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Helper to convert []string to []any
func stringSliceToAnySlice(strs []string) []any {
	anys := make([]any, len(strs))
	for i, s := range strs {
		anys[i] = s
	}
	return anys
}
