package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App       AppConfig
	DB        DBConfig
	JWT       JWTConfig
	HTTP      HTTPConfig
	Loyverse  LoyverseConfig
	SRI       SRIConfig
	Scheduler SchedulerConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración de JWT. Secret vacío desactiva la autenticación de la API.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoyverseConfig cliente REST de Loyverse.
type LoyverseConfig struct {
	BaseURL   string
	Token     string // respaldo si la configuración del emisor no trae token
	PageLimit int    // máximo 250 según la API
	Timeout   time.Duration
}

// SRIConfig endpoints y tiempos de los web services offline del SRI.
type SRIConfig struct {
	ReceptionURLTest     string
	ReceptionURLProd     string
	AuthorizationURLTest string
	AuthorizationURLProd string
	Timeout              time.Duration
	SettleDelay          time.Duration // espera entre recepción y autorización
	Canonicalization     string        // "inclusive" (c14n 1.0) o "exclusive"
	CertPath             string        // solo para cmd/certinfo
	CertPassword         string
}

// SchedulerConfig sincronización automática Loyverse -> SRI.
type SchedulerConfig struct {
	Enabled     bool
	Interval    time.Duration
	Lookback    time.Duration // ventana inicial cuando no hay marca de última sincronización
	Concurrency int           // facturas procesadas en paralelo por lote
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "loyverse-sri"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "loyverse_sri"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "loyverse-sri"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Loyverse: LoyverseConfig{
			BaseURL:   getString(v, "LOYVERSE_BASE_URL", "https://api.loyverse.com/v1.0"),
			Token:     getString(v, "LOYVERSE_TOKEN", ""),
			PageLimit: getInt(v, "LOYVERSE_PAGE_LIMIT", 100),
			Timeout:   getDuration(v, "LOYVERSE_TIMEOUT", 30*time.Second),
		},
		SRI: SRIConfig{
			ReceptionURLTest:     getString(v, "SRI_RECEPTION_URL_TEST", "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline?wsdl"),
			ReceptionURLProd:     getString(v, "SRI_RECEPTION_URL_PROD", "https://cel.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline?wsdl"),
			AuthorizationURLTest: getString(v, "SRI_AUTHORIZATION_URL_TEST", "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline?wsdl"),
			AuthorizationURLProd: getString(v, "SRI_AUTHORIZATION_URL_PROD", "https://cel.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline?wsdl"),
			Timeout:              getDuration(v, "SRI_TIMEOUT", 60*time.Second),
			SettleDelay:          getDuration(v, "SRI_SETTLE_DELAY", 3*time.Second),
			Canonicalization:     getString(v, "SRI_C14N", "inclusive"),
			CertPath:             getString(v, "SRI_CERT_PATH", ""),
			CertPassword:         getString(v, "SRI_CERT_PASSWORD", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:     getBool(v, "SCHEDULER_ENABLED", false),
			Interval:    getDuration(v, "SCHEDULER_INTERVAL", 30*time.Minute),
			Lookback:    getDuration(v, "SCHEDULER_LOOKBACK", 24*time.Hour),
			Concurrency: getInt(v, "SCHEDULER_CONCURRENCY", 1),
		},
	}

	if cfg.Loyverse.PageLimit <= 0 || cfg.Loyverse.PageLimit > 250 {
		return nil, fmt.Errorf("config: LOYVERSE_PAGE_LIMIT debe estar entre 1 y 250, recibido %d", cfg.Loyverse.PageLimit)
	}
	if cfg.Scheduler.Interval <= 0 {
		return nil, fmt.Errorf("config: SCHEDULER_INTERVAL debe ser positivo")
	}
	if cfg.Scheduler.Concurrency <= 0 {
		cfg.Scheduler.Concurrency = 1
	}
	switch cfg.SRI.Canonicalization {
	case "inclusive", "exclusive":
	default:
		return nil, fmt.Errorf("config: SRI_C14N desconocido %q (usar inclusive|exclusive)", cfg.SRI.Canonicalization)
	}

	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

// getDuration acepta "90s", "15m" o un entero interpretado como minutos
// (compatibilidad con la configuración de intervalos 15/30/60).
func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Minute
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return def
	}
	return b
}
