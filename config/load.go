package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file format.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// ErrUnsupportedFormat is returned for unknown file extensions.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Environment variables that override secrets from the file.
const (
	EnvKeyStorePassword   = "WSPOOL_KEY_STORE_PASSWORD"
	EnvTrustStorePassword = "WSPOOL_TRUST_STORE_PASSWORD"
	EnvAuthPassword       = "WSPOOL_AUTH_PASSWORD"
)

// Error is a configuration file error.
type Error struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Load reads path over the defaults, applies environment overrides and
// validates the result.
func Load(path string) (Client, error) {
	cfg, err := Read(path)
	if err != nil {
		return Client{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Client{}, &Error{Path: path, Err: err}
	}
	return cfg, nil
}

// Read is Load without validation, for callers that fill in secrets
// before validating.
func Read(path string) (Client, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Client{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Client{}, &Error{Path: path, Err: err}
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return Client{}, &Error{Path: path, Err: err}
	}
	LoadEnv(&cfg)
	return cfg, nil
}

// Parse decodes data over the defaults. It does not validate.
func Parse(data []byte, format Format) (Client, error) {
	cfg := Default()
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Client{}, err
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Client{}, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Client{}, fmt.Errorf("unknown option %q", undecoded[0].String())
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Client{}, err
		}
	default:
		return Client{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return cfg, nil
}

// LoadEnv applies password overrides present in the environment.
func LoadEnv(cfg *Client) {
	if v, ok := os.LookupEnv(EnvKeyStorePassword); ok {
		cfg.SSL.KeyStorePassword = v
	}
	if v, ok := os.LookupEnv(EnvTrustStorePassword); ok {
		cfg.SSL.TrustStorePassword = v
	}
	if v, ok := os.LookupEnv(EnvAuthPassword); ok {
		cfg.Auth.Password = v
	}
}
