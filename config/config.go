// Package config loads the gateway's TOML configuration file (contract
// whitelist, function/ethtoken/event specs, server and callback bindings)
// via viper/pflag, and builds the in-memory values the core packages
// consume. None of the core packages import this one: config produces
// already-parsed Go values (abi.Function, signer.EthTokens, ...) and hands
// them to cmd/gateway's wiring.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ethgate/gateway/abi"
	"github.com/ethgate/gateway/signer"
)

const (
	defaultListenHost = "0.0.0.0"
	defaultListenPort = 8443
	defaultLogLevel   = "info"
	defaultLogOutput  = "stderr"
	defaultPoll       = 2 * time.Second
	defaultLag        = 0
)

// ParamSpec is the TOML shape of one function/event/token field.
type ParamSpec struct {
	Name    string `mapstructure:"name"`
	Type    string `mapstructure:"type"`
	Indexed bool   `mapstructure:"indexed"`
}

// FunctionSpec is the TOML shape of one whitelisted contract function.
type FunctionSpec struct {
	Name    string      `mapstructure:"name"`
	Inputs  []ParamSpec `mapstructure:"inputs"`
	Payable bool        `mapstructure:"payable"`
}

// TokenSpec is the TOML shape of one "ethtoken" packed-value spec.
type TokenSpec struct {
	Name   string      `mapstructure:"name"`
	Fields []ParamSpec `mapstructure:"fields"`
}

// EventSpec is the TOML shape of one event definition plus the template
// used to render its matching logs.
type EventSpec struct {
	Name     string      `mapstructure:"name"`
	Inputs   []ParamSpec `mapstructure:"inputs"`
	Template string      `mapstructure:"template"`
}

// CallbackSpec is the TOML shape of one callback binding.
type CallbackSpec struct {
	Endpoint string   `mapstructure:"endpoint"` // "stdout" or a URI, may contain $VAR
	Origin   []string `mapstructure:"origin"`
	Events   []string `mapstructure:"events"`
	Start    uint64   `mapstructure:"start"`
	PollMS   int      `mapstructure:"pollMs"`
	Lag      uint8    `mapstructure:"lag"`
}

// Config is the top-level configuration document.
type Config struct {
	NodeURL         string         `mapstructure:"nodeUrl"`
	ListenHost      string         `mapstructure:"listenHost"`
	ListenPort      int            `mapstructure:"listenPort"`
	TemplateDir     string         `mapstructure:"templateDir"`
	KeyHex          string         `mapstructure:"keyHex"`
	KeyFile         string         `mapstructure:"keyFile"`
	Whitelist       []string       `mapstructure:"whitelist"`
	Default         string         `mapstructure:"default"`
	AllowRawSigning bool           `mapstructure:"allowRawSigning"`
	AllowCreation   bool           `mapstructure:"allowContractCreation"`
	FunctionSpecs   []FunctionSpec `mapstructure:"functions"`
	TokenSpecs      []TokenSpec    `mapstructure:"tokens"`
	EventSpecs      []EventSpec    `mapstructure:"events"`
	Callbacks       []CallbackSpec `mapstructure:"callbacks"`
	EventsOrigin    []string       `mapstructure:"eventsOrigin"`
	LogLevel        string         `mapstructure:"logLevel"`
	LogOutput       string         `mapstructure:"logOutput"`
}

// Load reads the TOML file named by --config (default ethgate.toml), binds
// pflag overrides and environment variables, and unmarshals into a Config.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("ethgate", flag.ContinueOnError)
	configPath := fs.String("config", "ethgate.toml", "path to the TOML configuration file")
	fs.String("node-url", "", "upstream node websocket URL")
	fs.String("listen-host", defaultListenHost, "HTTP front listen host")
	fs.Int("listen-port", defaultListenPort, "HTTP front listen port")
	fs.String("log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.String("log-output", defaultLogOutput, "log output (stdout, stderr or filepath)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	v.SetDefault("listenHost", defaultListenHost)
	v.SetDefault("listenPort", defaultListenPort)
	v.SetDefault("logLevel", defaultLogLevel)
	v.SetDefault("logOutput", defaultLogOutput)
	v.SetDefault("allowRawSigning", false)
	v.SetDefault("allowContractCreation", false)

	v.SetConfigFile(*configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config %s: %w", *configPath, err)
		}
	}

	v.SetEnvPrefix("ETHGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, name := range map[string]string{
		"nodeUrl":    "node-url",
		"listenHost": "listen-host",
		"listenPort": "listen-port",
		"logLevel":   "log-level",
		"logOutput":  "log-output",
	} {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func paramsFromSpec(specs []ParamSpec) []abi.Param {
	out := make([]abi.Param, len(specs))
	for i, s := range specs {
		out[i] = abi.Param{Name: s.Name, Type: abi.TokenType(s.Type), Indexed: s.Indexed}
	}
	return out
}

// Functions builds the name -> abi.Function registry the signer enforces.
func (c *Config) Functions() map[string]abi.Function {
	out := make(map[string]abi.Function, len(c.FunctionSpecs))
	for _, f := range c.FunctionSpecs {
		out[f.Name] = abi.Function{Name: f.Name, Inputs: paramsFromSpec(f.Inputs), Payable: f.Payable}
	}
	return out
}

// Tokens builds the signer's "ethtoken" registry.
func (c *Config) Tokens() *signer.EthTokens {
	tokens := make([]signer.EthToken, len(c.TokenSpecs))
	for i, t := range c.TokenSpecs {
		tokens[i] = signer.EthToken{Name: t.Name, Fields: paramsFromSpec(t.Fields)}
	}
	return signer.NewEthTokens(tokens)
}

// Events builds the abi.Event registry used by the templater and the query
// encoder. The template name bound to each event is not part of the result;
// it stays in EventSpecs[i].Template.
func (c *Config) Events() []abi.Event {
	out := make([]abi.Event, len(c.EventSpecs))
	for i, e := range c.EventSpecs {
		out[i] = abi.Event{Name: e.Name, Inputs: paramsFromSpec(e.Inputs)}
	}
	return out
}

// Poll returns the configured poll interval for a callback spec, defaulting
// to defaultPoll when unset.
func (s CallbackSpec) Poll() time.Duration {
	if s.PollMS <= 0 {
		return defaultPoll
	}
	return time.Duration(s.PollMS) * time.Millisecond
}

// ExpandEndpoint resolves a `$VAR`-style environment variable reference in
// a callback endpoint URI at load time, per the configuration contract.
func ExpandEndpoint(endpoint string) string {
	return os.Expand(endpoint, os.Getenv)
}
