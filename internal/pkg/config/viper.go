package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: GONOTIFY_SMS_TWILIO_AUTH_TOKEN
// overrides sms.twilio.auth_token.
const EnvPrefix = "GONOTIFY"

var errConfigType = errors.New("config: config type is required")

type Viper struct {
	v *viper.Viper
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// NewViper reads the file at path and reloads it when it changes on disk.
func NewViper(path string) (*Viper, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("config reloaded", "path", filepath.Clean(e.Name), "op", e.Op.String())
	})
	v.WatchConfig()

	return &Viper{v: v}, nil
}

// NewViperFromBytes reads an in-memory document of configType ("yaml", "json").
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, errConfigType
	}

	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

func (c *Viper) GetString(key string) string   { return c.v.GetString(key) }
func (c *Viper) GetBool(key string) bool       { return c.v.GetBool(key) }
func (c *Viper) GetInt(key string) int         { return c.v.GetInt(key) }
func (c *Viper) GetInt32(key string) int32     { return c.v.GetInt32(key) }
func (c *Viper) GetInt64(key string) int64     { return c.v.GetInt64(key) }
func (c *Viper) GetUint16(key string) uint16   { return c.v.GetUint16(key) }
func (c *Viper) GetFloat64(key string) float64 { return c.v.GetFloat64(key) }

func (c *Viper) GetSecond(key string) time.Duration {
	return time.Duration(c.v.GetInt64(key)) * time.Second
}

func (c *Viper) GetArray(key string) []string {
	var out []string
	for part := range strings.SplitSeq(c.v.GetString(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Viper) GetBinary(key string) []byte {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.v.GetString(key)))
	if err != nil {
		return nil
	}
	return data
}

// Close exists so the config joins the app closers; viper holds nothing to release.
func (c *Viper) Close() error { return nil }
