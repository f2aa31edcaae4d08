package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/mychat/chatlink/pkg/chatlink/session"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"go.uber.org/zap"
)

// ConfigBuilder collects configuration sources.
type ConfigBuilder struct {
	logger  *zap.Logger
	sources []any
}

// Config is the evaluated chatlink configuration.
type Config struct {
	Logger    *zap.Logger
	Functions map[string]function.Function
	Constants map[string]cty.Value
	evalCtx   *hcl.EvalContext

	LogLevel   string
	Filter     string
	Connection ConnectionConfig
	API        APIConfig
}

// ConnectionConfig configures the session socket.
type ConnectionConfig struct {
	// Origin is a page origin such as "https://chat.example.com". It is an
	// alternative to Host and Secure.
	Origin string
	Host   string
	Secure bool

	Session string
	Token   string

	// MaxReconnectAttempts is nil when unset so the manager default applies.
	MaxReconnectAttempts *int
	ReconnectInterval    time.Duration
	DialTimeout          time.Duration
	Headers              map[string]string
}

// APIConfig configures the REST client.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type fileSchema struct {
	LogLevel   *string          `hcl:"log_level,optional"`
	Filter     *string          `hcl:"filter,optional"`
	Connection *connectionBlock `hcl:"connection,block"`
	API        *apiBlock        `hcl:"api,block"`
}

type connectionBlock struct {
	Origin               *string           `hcl:"origin,optional"`
	Host                 *string           `hcl:"host,optional"`
	Secure               *bool             `hcl:"secure,optional"`
	Session              *string           `hcl:"session,optional"`
	Token                *string           `hcl:"token,optional"`
	MaxReconnectAttempts *int              `hcl:"max_reconnect_attempts,optional"`
	ReconnectInterval    hcl.Expression    `hcl:"reconnect_interval,optional"`
	DialTimeout          hcl.Expression    `hcl:"dial_timeout,optional"`
	Headers              map[string]string `hcl:"headers,optional"`
	DefRange             hcl.Range         `hcl:",def_range"`
}

type apiBlock struct {
	BaseURL *string        `hcl:"base_url,optional"`
	Timeout hcl.Expression `hcl:"timeout,optional"`
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// NewConfig creates a new configuration builder.
func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{
		logger:  zap.NewNop(),
		sources: make([]any, 0),
	}
}

// WithLogger sets the logger stored on the resulting Config.
func (cb *ConfigBuilder) WithLogger(logger *zap.Logger) *ConfigBuilder {
	if logger != nil {
		cb.logger = logger
	}
	return cb
}

// WithSources adds file paths, directory paths or raw HCL bytes.
func (cb *ConfigBuilder) WithSources(sources ...any) *ConfigBuilder {
	cb.sources = append(cb.sources, sources...)
	return cb
}

// Build parses and evaluates all sources. Sources are merged; a block or
// attribute defined in more than one source is an error.
func (cb *ConfigBuilder) Build() (*Config, hcl.Diagnostics) {
	config := &Config{
		Logger:    cb.logger,
		Functions: GetFunctions(),
		Constants: map[string]cty.Value{
			"env": GetEnvObject(),
		},
	}

	config.evalCtx = &hcl.EvalContext{
		Functions: config.Functions,
		Variables: config.Constants,
	}

	bodies, diags := ParseConfigFiles(cb.sources...)
	if diags.HasErrors() {
		return nil, diags
	}

	var raw fileSchema
	diags = diags.Extend(gohcl.DecodeBody(hcl.MergeBodies(bodies), config.evalCtx, &raw))
	if diags.HasErrors() {
		return nil, diags
	}

	diags = diags.Extend(config.apply(&raw))
	if diags.HasErrors() {
		return nil, diags
	}

	config.Logger.Debug("Configuration loaded",
		zap.Int("sources", len(cb.sources)),
		zap.String("session", config.Connection.Session),
	)

	return config, diags
}

func (c *Config) apply(raw *fileSchema) hcl.Diagnostics {
	var diags hcl.Diagnostics

	if raw.LogLevel != nil {
		level := strings.ToLower(strings.TrimSpace(*raw.LogLevel))
		if !logLevels[level] {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid log level",
				Detail:   fmt.Sprintf("log_level must be one of debug, info, warn, error; got %q", *raw.LogLevel),
			})
		}
		c.LogLevel = level
	}

	if raw.Filter != nil {
		c.Filter = *raw.Filter
	}

	if raw.Connection != nil {
		diags = diags.Extend(c.applyConnection(raw.Connection))
	}

	if raw.API != nil {
		if raw.API.BaseURL != nil {
			c.API.BaseURL = *raw.API.BaseURL
		}
		if IsExpressionProvided(raw.API.Timeout) {
			d, durDiags := c.ParseDuration(raw.API.Timeout)
			diags = diags.Extend(durDiags)
			c.API.Timeout = d
		}
	}

	return diags
}

func (c *Config) applyConnection(block *connectionBlock) hcl.Diagnostics {
	var diags hcl.Diagnostics
	conn := &c.Connection

	conn.Origin = deref(block.Origin)
	conn.Host = deref(block.Host)
	conn.Session = deref(block.Session)
	conn.Token = deref(block.Token)
	conn.Headers = block.Headers
	if block.Secure != nil {
		conn.Secure = *block.Secure
	}

	if conn.Origin != "" && (conn.Host != "" || block.Secure != nil) {
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Conflicting connection settings",
			Detail:   "Set either origin, or host and secure, not both",
			Subject:  block.DefRange.Ptr(),
		})
	}

	if block.MaxReconnectAttempts != nil {
		if *block.MaxReconnectAttempts < 0 {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid reconnect budget",
				Detail:   "max_reconnect_attempts must be zero or more",
				Subject:  block.DefRange.Ptr(),
			})
		}
		n := *block.MaxReconnectAttempts
		conn.MaxReconnectAttempts = &n
	}

	if IsExpressionProvided(block.ReconnectInterval) {
		d, durDiags := c.ParseDuration(block.ReconnectInterval)
		diags = diags.Extend(durDiags)
		conn.ReconnectInterval = d
	}

	if IsExpressionProvided(block.DialTimeout) {
		d, durDiags := c.ParseDuration(block.DialTimeout)
		diags = diags.Extend(durDiags)
		conn.DialTimeout = d
	}

	return diags
}

// Endpoint resolves the session endpoint from Origin or Host and Secure.
func (cc ConnectionConfig) Endpoint() (session.Endpoint, error) {
	if cc.Origin != "" {
		return session.EndpointFromOrigin(cc.Origin, cc.Session, cc.Token)
	}

	if cc.Host == "" {
		return session.Endpoint{}, fmt.Errorf("connection origin or host is required")
	}

	return session.Endpoint{
		Host:      cc.Host,
		Secure:    cc.Secure,
		SessionID: cc.Session,
		Token:     cc.Token,
	}, nil
}

// Apply copies the configured connection options onto a manager builder.
// Unset options keep the builder's values.
func (cc ConnectionConfig) Apply(b *session.ManagerBuilder) *session.ManagerBuilder {
	if cc.MaxReconnectAttempts != nil {
		b.WithMaxReconnectAttempts(*cc.MaxReconnectAttempts)
	}
	b.WithReconnectInterval(cc.ReconnectInterval)
	b.WithDialTimeout(cc.DialTimeout)
	for k, v := range cc.Headers {
		b.WithHeader(k, v)
	}
	return b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
