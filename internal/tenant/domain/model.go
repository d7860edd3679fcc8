package domain

import "strings"

// DefaultTenantID names the entry unknown tenants fall back to.
const DefaultTenantID = "default"

type NotificationProvider string

const (
	NotificationOneSignal NotificationProvider = "onesignal"
	NotificationCustom    NotificationProvider = "custom"
	NotificationDisabled  NotificationProvider = "disabled"
	// NotificationFCM is accepted in configuration but not implemented; it behaves as disabled.
	NotificationFCM NotificationProvider = "fcm"
)

// ParseNotificationProvider maps a configured value onto the closed provider set.
func ParseNotificationProvider(raw string) (NotificationProvider, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "onesignal", "push":
		return NotificationOneSignal, true
	case "custom", "http":
		return NotificationCustom, true
	case "disabled", "none", "":
		return NotificationDisabled, true
	case "fcm":
		return NotificationFCM, true
	default:
		return NotificationDisabled, false
	}
}

type RecordBackend string

const (
	BackendTree       RecordBackend = "tree"
	BackendStructured RecordBackend = "structured"
	BackendCustom     RecordBackend = "custom"
)

// BackendOrder is the fixed fallback order used when a tenant's backend is not configured.
var BackendOrder = []RecordBackend{BackendTree, BackendStructured, BackendCustom}

func ParseRecordBackend(raw string) (RecordBackend, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "tree", "realtime":
		return BackendTree, true
	case "structured", "sql":
		return BackendStructured, true
	case "custom", "http":
		return BackendCustom, true
	default:
		return "", false
	}
}

// TenantConfig is the fully merged configuration governing one application.
type TenantConfig struct {
	ID            string
	Name          string
	Notifications NotificationsConfig
	RecordStore   RecordStoreConfig
	TestMode      TestModeConfig
}

type NotificationsConfig struct {
	Provider  NotificationProvider
	OneSignal OneSignalConfig
	Custom    CustomEndpointConfig
}

type OneSignalConfig struct {
	AppID  string `mapstructure:"appId"`
	APIKey string `mapstructure:"apiKey"`
}

type CustomEndpointConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type RecordStoreConfig struct {
	Backend     RecordBackend
	Collections Collections
	Custom      CustomStoreConfig
	Recipients  RecipientFields
}

// Collections maps logical collections onto physical names.
type Collections struct {
	Orders        string
	Consultations string
	Payments      string
	Users         string
}

type CustomStoreConfig struct {
	BaseURL string            `mapstructure:"baseUrl"`
	Headers map[string]string `mapstructure:"headers"`
}

// RecipientFields names the linked-record and users-collection fields used to find notification recipients.
type RecipientFields struct {
	UserField     string
	ProviderField string
	AdminField    string
	AdminValue    string
}

type TestModeConfig struct {
	AutoDetect    bool
	BookOnFailure bool
}

// Overrides is a tenant entry as written in the static configuration.
// Nil pointers mean "inherit from the default entry".
type Overrides struct {
	Name          *string                `mapstructure:"name"`
	Notifications *NotificationOverrides `mapstructure:"notifications"`
	RecordStore   *RecordStoreOverrides  `mapstructure:"recordStore"`
	TestMode      *TestModeOverrides     `mapstructure:"testMode"`
}

type NotificationOverrides struct {
	Provider  *string               `mapstructure:"provider"`
	OneSignal *OneSignalOverrides   `mapstructure:"onesignal"`
	Custom    *CustomEndpointConfig `mapstructure:"custom"`
}

type OneSignalOverrides struct {
	AppID  *string `mapstructure:"appId"`
	APIKey *string `mapstructure:"apiKey"`
}

type RecordStoreOverrides struct {
	Backend     *string              `mapstructure:"backend"`
	Collections *CollectionOverrides `mapstructure:"collections"`
	Custom      *CustomStoreConfig   `mapstructure:"custom"`
	Recipients  *RecipientOverrides  `mapstructure:"recipients"`
}

type CollectionOverrides struct {
	Orders        *string `mapstructure:"orders"`
	Consultations *string `mapstructure:"consultations"`
	Payments      *string `mapstructure:"payments"`
	Users         *string `mapstructure:"users"`
}

type RecipientOverrides struct {
	UserField     *string `mapstructure:"userField"`
	ProviderField *string `mapstructure:"providerField"`
	AdminField    *string `mapstructure:"adminField"`
	AdminValue    *string `mapstructure:"adminValue"`
}

type TestModeOverrides struct {
	AutoDetect    *bool `mapstructure:"autoDetect"`
	BookOnFailure *bool `mapstructure:"bookOnFailure"`
}

// Resolution reports how a tenant id was matched.
type Resolution string

const (
	ResolvedExact   Resolution = "exact"
	ResolvedDefault Resolution = "default"
	ResolvedFirst   Resolution = "first_entry"
)
