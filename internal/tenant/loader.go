package tenant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/tenant/domain"
	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

var ErrInvalidTenantConfig = errors.New("invalid_tenant_config")

// Keys arrive lowercased from viper, so the schema uses lowercase property names.
const tenantSchema = `{
  "type": "object",
  "required": ["apps"],
  "properties": {
    "apps": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {"$ref": "#/definitions/tenant"}
    }
  },
  "definitions": {
    "headers": {"type": "object", "additionalProperties": {"type": "string"}},
    "tenant": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "notifications": {
          "type": "object",
          "properties": {
            "provider": {"type": "string", "enum": ["onesignal", "push", "custom", "http", "disabled", "none", "fcm"]},
            "onesignal": {
              "type": "object",
              "properties": {"appid": {"type": "string"}, "apikey": {"type": "string"}}
            },
            "custom": {
              "type": "object",
              "required": ["url"],
              "properties": {"url": {"type": "string", "minLength": 1}, "headers": {"$ref": "#/definitions/headers"}}
            }
          }
        },
        "recordstore": {
          "type": "object",
          "properties": {
            "backend": {"type": "string", "enum": ["tree", "realtime", "structured", "sql", "custom", "http"]},
            "collections": {
              "type": "object",
              "properties": {
                "orders": {"type": "string", "minLength": 1},
                "consultations": {"type": "string", "minLength": 1},
                "payments": {"type": "string", "minLength": 1},
                "users": {"type": "string", "minLength": 1}
              }
            },
            "custom": {
              "type": "object",
              "required": ["baseurl"],
              "properties": {"baseurl": {"type": "string", "minLength": 1}, "headers": {"$ref": "#/definitions/headers"}}
            },
            "recipients": {
              "type": "object",
              "additionalProperties": {"type": "string"}
            }
          }
        },
        "testmode": {
          "type": "object",
          "properties": {
            "autodetect": {"type": "boolean"},
            "bookonfailure": {"type": "boolean"}
          }
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(tenantSchema)

// LoadFile reads and validates a tenant configuration file (YAML or JSON).
func LoadFile(path string) (map[string]domain.Overrides, error) {
	// Tenant ids are often bundle identifiers such as com.clinic.app, so the
	// default "." key delimiter cannot be used.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read tenant config %s: %w", path, err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(v.AllSettings()))
	if err != nil {
		return nil, fmt.Errorf("validate tenant config: %w", err)
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, issue := range result.Errors() {
			issues = append(issues, issue.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidTenantConfig, strings.Join(issues, "; "))
	}

	var entries map[string]domain.Overrides
	if err := v.UnmarshalKey("apps", &entries); err != nil {
		return nil, fmt.Errorf("decode tenant config: %w", err)
	}
	return entries, nil
}

// Load builds the registry from cfg.TenantConfigPath. Any read or validation
// failure falls back to the built-in default so the relay keeps serving.
func Load(cfg config.Config, log *zap.Logger) *Registry {
	log = log.Named("tenant")
	base := BuiltinDefault(cfg)

	entries, err := LoadFile(cfg.TenantConfigPath)
	if err != nil {
		log.Warn("tenant config unavailable, using built-in default",
			zap.String("path", cfg.TenantConfigPath),
			zap.Error(err),
		)
		return NewRegistry(base, nil)
	}

	registry := NewRegistry(base, entries)
	log.Info("tenant config loaded",
		zap.String("path", cfg.TenantConfigPath),
		zap.Strings("tenants", registry.IDs()),
	)
	return registry
}
