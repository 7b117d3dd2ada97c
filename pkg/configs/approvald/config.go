package approvald

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Configuration of the approval API server.
//
// This type is immutable; unmarshal an ApprovaldConfigMarshall and seal
// it with TrySeal.
type ApprovaldConfig struct {
	port     int32
	database string
	signKey  string
}

func (c *ApprovaldConfig) Port() int32 {
	return c.port
}

// Connection string for the store holding approval requests.
func (c *ApprovaldConfig) Database() string {
	return c.database
}

// HS256 key decision tokens are signed with.
func (c *ApprovaldConfig) SignKey() string {
	return c.signKey
}

// Mutable marshalling counterpart of ApprovaldConfig.
type ApprovaldConfigMarshall struct {
	Port     int32  `yaml:"port"`
	Database string `yaml:"database"`
	SignKey  string `yaml:"signKey"`
}

// verify configuration value and create "readonly" version of this.
//
// IT WILL PANIC if any misconfiguration is found.
func (m *ApprovaldConfigMarshall) TrySeal() *ApprovaldConfig {
	return &ApprovaldConfig{
		port:     required(m.Port, "(root).port"),
		database: required(m.Database, "(root).database"),
		signKey:  required(m.SignKey, "(root).signKey"),
	}
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}

func LoadApprovaldConfig(filepath string) (*ApprovaldConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (*ApprovaldConfig, error) {
	var out *ApprovaldConfigMarshall
	if err := yaml.Unmarshal(conf, &out); err != nil {
		return nil, err
	}
	return out.TrySeal(), nil
}
