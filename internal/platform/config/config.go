package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix              = "ALMAR_"
	defaultEnvFile         = ".env"
	defaultWebAddr         = ":8080"
	defaultAdminAddr       = ":8081"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultStoreDriver     = "postgres"
	defaultImagesBucket    = "images"
	defaultMaxUploadBytes  = 5 << 20
	defaultPubSubTopic     = "content-changed"
	defaultMailFrom        = "Almar Puit <noreply@almarpuit.ee>"
	defaultAdminBasePath   = "/admin"
	defaultAuthMode        = "firebase"
	defaultSessionIdle     = 30 * time.Minute
	defaultSessionLifetime = 12 * time.Hour
	defaultSiteLocale      = "et"
)

// Store drivers accepted by Store.Driver.
const (
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverFirestore = "firestore"
	DriverMemory    = "memory"
)

// Admin authentication modes.
const (
	AuthModeFirebase = "firebase"
	AuthModeLocal    = "local"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Store       StoreConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Storage     StorageConfig
	PubSub      PubSubConfig
	Mail        MailConfig
	Session     SessionConfig
	Admin       AdminConfig
	Site        SiteConfig
}

// ServerConfig configures HTTP server parameters for both binaries.
type ServerConfig struct {
	WebAddr         string
	AdminAddr       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// StoreConfig selects the content store backend.
type StoreConfig struct {
	Driver          string
	DSN             string
	BootstrapSchema bool
}

// FirebaseConfig stores Firebase project settings used for admin sign-in.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	APIKey          string
}

// FirestoreConfig stores document database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig controls admin image uploads.
type StorageConfig struct {
	ImagesBucket   string
	PublicBaseURL  string
	MaxUploadBytes int64
}

// PubSubConfig controls content change events. An empty ProjectID disables publishing.
type PubSubConfig struct {
	ProjectID string
	Topic     string
}

// MailConfig controls contact form delivery. An empty API key disables sending.
type MailConfig struct {
	ResendAPIKey string
	From         string
}

// SessionConfig controls the admin session cookie.
type SessionConfig struct {
	HashKey      string
	BlockKey     string
	CookieSecure bool
	IdleTimeout  time.Duration
	Lifetime     time.Duration
}

// AdminConfig controls the admin panel.
type AdminConfig struct {
	BasePath string
	AuthMode string
	// LocalUsers maps an email to a bcrypt password hash for AuthModeLocal.
	LocalUsers map[string]string
	JWTSecret  string
}

// SiteConfig controls the public site.
type SiteConfig struct {
	PublicURL     string
	DefaultLocale string
	CORSOrigins   []string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	configFile   string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithConfigFile reads an optional YAML file whose keys are the variable
// names without the ALMAR_ prefix, in lower case (e.g. store_driver).
func WithConfigFile(path string) Option {
	return func(o *loaderOptions) {
		o.configFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the configuration from defaults, an optional YAML file, the
// .env file, the process environment and explicit overrides, in increasing
// precedence, then resolves Secret Manager references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		opt(&options)
	}

	lookup, err := newLookup(options)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "ENV", "local")),
		Server: ServerConfig{
			WebAddr:         stringWithDefault(lookup, "WEB_ADDR", defaultWebAddr),
			AdminAddr:       stringWithDefault(lookup, "ADMIN_ADDR", defaultAdminAddr),
			ReadTimeout:     durationWithDefault(lookup, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Store: StoreConfig{
			Driver:          strings.ToLower(stringWithDefault(lookup, "STORE_DRIVER", defaultStoreDriver)),
			DSN:             stringWithDefault(lookup, "STORE_DSN", ""),
			BootstrapSchema: boolWithDefault(lookup, "STORE_BOOTSTRAP_SCHEMA", false),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "FIREBASE_CREDENTIALS_FILE", ""),
			APIKey:          stringWithDefault(lookup, "FIREBASE_API_KEY", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "FIRESTORE_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			ImagesBucket:   stringWithDefault(lookup, "STORAGE_IMAGES_BUCKET", defaultImagesBucket),
			PublicBaseURL:  strings.TrimRight(stringWithDefault(lookup, "STORAGE_PUBLIC_BASE_URL", ""), "/"),
			MaxUploadBytes: int64(intWithDefault(lookup, "STORAGE_MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
		},
		PubSub: PubSubConfig{
			ProjectID: stringWithDefault(lookup, "PUBSUB_PROJECT_ID", ""),
			Topic:     stringWithDefault(lookup, "PUBSUB_TOPIC", defaultPubSubTopic),
		},
		Mail: MailConfig{
			ResendAPIKey: stringWithDefault(lookup, "MAIL_RESEND_API_KEY", ""),
			From:         stringWithDefault(lookup, "MAIL_FROM", defaultMailFrom),
		},
		Session: SessionConfig{
			HashKey:      stringWithDefault(lookup, "SESSION_HASH_KEY", ""),
			BlockKey:     stringWithDefault(lookup, "SESSION_BLOCK_KEY", ""),
			CookieSecure: boolWithDefault(lookup, "SESSION_COOKIE_SECURE", true),
			IdleTimeout:  durationWithDefault(lookup, "SESSION_IDLE_TIMEOUT", defaultSessionIdle),
			Lifetime:     durationWithDefault(lookup, "SESSION_LIFETIME", defaultSessionLifetime),
		},
		Admin: AdminConfig{
			BasePath:   stringWithDefault(lookup, "ADMIN_BASE_PATH", defaultAdminBasePath),
			AuthMode:   strings.ToLower(stringWithDefault(lookup, "ADMIN_AUTH_MODE", defaultAuthMode)),
			LocalUsers: mapWithDefault(lookup, "ADMIN_LOCAL_USERS"),
			JWTSecret:  stringWithDefault(lookup, "ADMIN_JWT_SECRET", ""),
		},
		Site: SiteConfig{
			PublicURL:     strings.TrimRight(stringWithDefault(lookup, "SITE_PUBLIC_URL", ""), "/"),
			DefaultLocale: strings.ToLower(stringWithDefault(lookup, "SITE_DEFAULT_LOCALE", defaultSiteLocale)),
			CORSOrigins:   csvWithDefault(lookup, "SITE_CORS_ORIGINS"),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" && cfg.Store.Driver == DriverFirestore {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}
	if cfg.Storage.PublicBaseURL == "" && cfg.Storage.ImagesBucket != "" {
		cfg.Storage.PublicBaseURL = "https://storage.googleapis.com/" + cfg.Storage.ImagesBucket
	}

	secretFields := []*string{
		&cfg.Store.DSN,
		&cfg.Firebase.APIKey,
		&cfg.Mail.ResendAPIKey,
		&cfg.Session.HashKey,
		&cfg.Session.BlockKey,
		&cfg.Admin.JWTSecret,
	}
	for _, field := range secretFields {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateAdmin checks the settings only the admin binary needs.
func (c Config) ValidateAdmin() error {
	var missing []string
	if len(c.Session.HashKey) < 32 {
		missing = append(missing, "Session.HashKey")
	}
	if n := len(c.Session.BlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		missing = append(missing, "Session.BlockKey")
	}
	switch c.Admin.AuthMode {
	case AuthModeFirebase:
		if c.Firebase.ProjectID == "" {
			missing = append(missing, "Firebase.ProjectID")
		}
		if c.Firebase.APIKey == "" {
			missing = append(missing, "Firebase.APIKey")
		}
	case AuthModeLocal:
		if len(c.Admin.LocalUsers) == 0 {
			missing = append(missing, "Admin.LocalUsers")
		}
		if c.Admin.JWTSecret == "" {
			missing = append(missing, "Admin.JWTSecret")
		}
	default:
		missing = append(missing, "Admin.AuthMode")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func validateConfig(cfg Config) error {
	var missing []string

	switch cfg.Store.Driver {
	case DriverPostgres, DriverSQLite:
		if cfg.Store.DSN == "" {
			missing = append(missing, "Store.DSN")
		}
	case DriverFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	case DriverMemory:
	default:
		missing = append(missing, "Store.Driver")
	}
	if cfg.Server.WebAddr == "" {
		missing = append(missing, "Server.WebAddr")
	}
	if cfg.Server.AdminAddr == "" {
		missing = append(missing, "Server.AdminAddr")
	}
	if cfg.Storage.MaxUploadBytes <= 0 {
		missing = append(missing, "Storage.MaxUploadBytes")
	}
	if !strings.HasPrefix(cfg.Admin.BasePath, "/") {
		missing = append(missing, "Admin.BasePath")
	}
	if cfg.Site.DefaultLocale != "et" && cfg.Site.DefaultLocale != "en" {
		missing = append(missing, "Site.DefaultLocale")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

// newLookup layers the sources; keys are variable names without the prefix.
func newLookup(options loaderOptions) (func(string) (string, bool), error) {
	var dotenv map[string]string
	if options.envFile != "" {
		values, err := godotenv.Read(options.envFile)
		switch {
		case err == nil:
			dotenv = values
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: unable to read %s: %w", options.envFile, err)
		}
	}

	var file *viper.Viper
	if options.configFile != "" {
		file = viper.New()
		file.SetConfigFile(options.configFile)
		file.SetConfigType("yaml")
		if err := file.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: unable to read %s: %w", options.configFile, err)
		}
	}

	return func(key string) (string, bool) {
		name := envPrefix + key
		if options.envMap != nil {
			if value, ok := options.envMap[name]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(name); ok {
				return value, true
			}
		}
		if value, ok := dotenv[name]; ok {
			return value, true
		}
		if file != nil {
			fileKey := strings.ToLower(key)
			if file.IsSet(fileKey) {
				return file.GetString(fileKey), true
			}
		}
		return "", false
	}, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

// IsSecretReference reports whether value names a Secret Manager secret.
func IsSecretReference(value string) bool { return isSecretReference(value) }

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// mapWithDefault parses "k1=v1,k2=v2". Keys are lower-cased.
func mapWithDefault(lookup func(string) (string, bool), key string) map[string]string {
	values := make(map[string]string)
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return values
	}
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		if name == "" || value == "" {
			continue
		}
		values[name] = value
	}
	return values
}
