/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Options holds the network settings of a connection. Keys other than host
// and port are kept in Extra and handed to the engine untouched.
type Options struct {
	Host  string                 `json:"host,omitempty"`
	Port  int                    `json:"port,omitempty" validate:"omitempty,min=1"`
	Extra map[string]interface{} `json:"-"`
}

// Config is the normalized connection configuration.
type Config struct {
	User    string  `json:"user" validate:"required"`
	Pass    string  `json:"pass" validate:"required"`
	DB      string  `json:"db" validate:"required"`
	VinkaDB string  `json:"vinkaDB,omitempty"`
	Logging bool    `json:"logging,omitempty"`
	SSL     bool    `json:"ssl,omitempty"`
	Options Options `json:"options"`
}

// configKeys lists the accepted top-level keys in validation order.
var configKeys = []string{"user", "pass", "db", "vinkaDB", "logging", "ssl", "options"}

var requiredKeys = map[string]bool{"user": true, "pass": true, "db": true}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseConfig validates a loosely typed configuration bag and returns the
// normalized configuration. The bag is not modified. Keys are checked one by
// one in the order of configKeys, each for presence and type, and unknown
// keys are rejected last. The returned error is a *ConfigError naming the
// first offending field.
func ParseConfig(bag map[string]interface{}) (*Config, error) {
	cfg := &Config{}
	for _, key := range configKeys {
		v, ok := bag[key]
		if !ok || v == nil {
			if requiredKeys[key] {
				return nil, &ConfigError{Field: key, Reason: ReasonRequired}
			}
			continue
		}
		var err error
		switch key {
		case "user":
			cfg.User, err = asString(key, v)
		case "pass":
			cfg.Pass, err = asString(key, v)
		case "db":
			cfg.DB, err = asString(key, v)
		case "vinkaDB":
			cfg.VinkaDB, err = asString(key, v)
		case "logging":
			cfg.Logging, err = asBool(key, v)
		case "ssl":
			cfg.SSL, err = asBool(key, v)
		case "options":
			cfg.Options, err = parseOptions(v)
		}
		if err != nil {
			return nil, err
		}
	}

	if unknown := unknownKeys(bag); len(unknown) > 0 {
		return nil, &ConfigError{Field: unknown[0], Reason: ReasonUnknown}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required fields and ranges of an already typed
// configuration.
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigError{Field: "user", Reason: ReasonRequired}
	}
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return &ConfigError{Field: field, Reason: ReasonRequired}
	case "min":
		return &ConfigError{
			Field:  field,
			Reason: ReasonOutOfRange,
			Detail: fmt.Sprintf("must be larger than or equal to %s", fe.Param()),
		}
	default:
		return &ConfigError{Field: field, Reason: ReasonWrongType, Detail: "failed on " + fe.Tag()}
	}
}

// String renders the configuration as JSON with the password masked.
func (c Config) String() string {
	view := map[string]interface{}{
		"user": c.User,
		"pass": "******",
		"db":   c.DB,
	}
	if c.VinkaDB != "" {
		view["vinkaDB"] = c.VinkaDB
	}
	if c.Logging {
		view["logging"] = true
	}
	if c.SSL {
		view["ssl"] = true
	}
	opts := make(map[string]interface{}, len(c.Options.Extra)+2)
	for k, v := range c.Options.Extra {
		opts[k] = v
	}
	if c.Options.Host != "" {
		opts["host"] = c.Options.Host
	}
	if c.Options.Port != 0 {
		opts["port"] = c.Options.Port
	}
	view["options"] = opts
	b, err := json.Marshal(view)
	if err != nil {
		return fmt.Sprintf("{db:%s user:%s}", c.DB, c.User)
	}
	return string(b)
}

func parseOptions(v interface{}) (Options, error) {
	m, ok := toStringMap(v)
	if !ok {
		return Options{}, &ConfigError{Field: "options", Reason: ReasonWrongType, Detail: "must be of type object"}
	}
	var opts Options
	if host, ok := m["host"]; ok && host != nil {
		s, err := asString("options.host", host)
		if err != nil {
			return Options{}, err
		}
		opts.Host = s
	}
	if port, ok := m["port"]; ok && port != nil {
		p, err := asPort("options.port", port)
		if err != nil {
			return Options{}, err
		}
		opts.Port = p
	}
	for k, val := range m {
		if k == "host" || k == "port" {
			continue
		}
		if opts.Extra == nil {
			opts.Extra = make(map[string]interface{})
		}
		opts.Extra[k] = val
	}
	return opts, nil
}

func unknownKeys(bag map[string]interface{}) []string {
	var unknown []string
	for k := range bag {
		known := false
		for _, ck := range configKeys {
			if k == ck {
				known = true
				break
			}
		}
		if !known {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func toStringMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func asString(field string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", &ConfigError{Field: field, Reason: ReasonWrongType, Detail: "must be a string"}
	}
	if s == "" {
		return "", &ConfigError{Field: field, Reason: ReasonEmpty}
	}
	return s, nil
}

func asBool(field string, v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, &ConfigError{Field: field, Reason: ReasonWrongType, Detail: "must be a boolean"}
}

func asPort(field string, v interface{}) (int, error) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, &ConfigError{Field: field, Reason: ReasonWrongType, Detail: "must be a number"}
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, &ConfigError{Field: field, Reason: ReasonWrongType, Detail: "must be a number"}
		}
		f = parsed
	default:
		return 0, &ConfigError{Field: field, Reason: ReasonWrongType, Detail: "must be a number"}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
		return 0, &ConfigError{Field: field, Reason: ReasonWrongType, Detail: "must be an integer"}
	}
	if f < 1 {
		return 0, &ConfigError{Field: field, Reason: ReasonOutOfRange, Detail: "must be larger than or equal to 1"}
	}
	if f > math.MaxInt32 {
		return 0, &ConfigError{Field: field, Reason: ReasonOutOfRange, Detail: "must be a safe number"}
	}
	return int(f), nil
}

// LoadConfigFile reads a YAML configuration file into a bag suitable for
// ParseConfig.
func LoadConfigFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	bag := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &bag); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return bag, nil
}

// EnvPrefix is the envconfig prefix of the override variables. Each
// variable also falls back to its unprefixed name, e.g. VINKA_DB_HOST then
// DB_HOST.
const EnvPrefix = "VINKA"

type envOverrides struct {
	Host      *string `envconfig:"DB_HOST"`
	Port      *int    `envconfig:"DB_PORT"`
	User      *string `envconfig:"DB_USERNAME"`
	Pass      *string `envconfig:"DB_PASSWORD"`
	Name      *string `envconfig:"DB_NAME"`
	Bootstrap *string `envconfig:"DB_BOOTSTRAP_NAME"`
	SSL       *bool   `envconfig:"DB_SSL"`
	Logging   *bool   `envconfig:"DB_LOGGING"`
}

// ApplyEnvOverrides returns a copy of bag with the connection settings found
// in the environment applied on top of it.
func ApplyEnvOverrides(bag map[string]interface{}) (map[string]interface{}, error) {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	out := make(map[string]interface{}, len(bag)+2)
	for k, v := range bag {
		out[k] = v
	}
	setString := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	setString("user", env.User)
	setString("pass", env.Pass)
	setString("db", env.Name)
	setString("vinkaDB", env.Bootstrap)
	if env.SSL != nil {
		out["ssl"] = *env.SSL
	}
	if env.Logging != nil {
		out["logging"] = *env.Logging
	}

	if env.Host == nil && env.Port == nil {
		return out, nil
	}
	opts := make(map[string]interface{})
	if existing, ok := out["options"]; ok && existing != nil {
		m, ok := toStringMap(existing)
		if !ok {
			// leave the malformed value for ParseConfig to report
			return out, nil
		}
		for k, v := range m {
			opts[k] = v
		}
	}
	if env.Host != nil {
		opts["host"] = *env.Host
	}
	if env.Port != nil {
		opts["port"] = *env.Port
	}
	out["options"] = opts
	return out, nil
}
