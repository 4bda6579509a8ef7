package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values come from the environment (optionally seeded from a .env file)
// with defaults that let the binary run locally without setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	LogLevel string

	StoreBackend  string
	DBFile        string
	PGDSN         string
	RedisAddr     string
	RedisPassword string
	RedisStateKey string
	RedisGeoKey   string

	KafkaBrokers       []string
	KafkaLocationTopic string
	KafkaOrderTopic    string

	GeoProvider   string
	MapboxToken   string
	GoogleMapsKey string
	OSRMURL       string
	GeoRatePerSec float64
	RouteCacheTTL time.Duration

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	PlatformName     string
	SubscriptionDays int
	DeliveryRadiusKm float64
	OfferTopN        int
}

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"

	GeoMapbox = "mapbox"
	GeoGoogle = "google"
	GeoOSRM   = "osrm"
	GeoNone   = "none"
)

func newViper() *viper.Viper {
	_ = godotenv.Load()
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("HTTP_READ_TIMEOUT", "5s")
	v.SetDefault("HTTP_WRITE_TIMEOUT", "10s")
	v.SetDefault("HTTP_IDLE_TIMEOUT", "120s")
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendFile)
	v.SetDefault("DB_FILE", "delivery_data.json")
	v.SetDefault("REDIS_STATE_KEY", "delivery:state")
	v.SetDefault("REDIS_GEO_KEY", "drivers_geo")
	v.SetDefault("KAFKA_LOCATION_TOPIC", "driver-locations")
	v.SetDefault("KAFKA_ORDER_TOPIC", "order-events")
	v.SetDefault("KAFKA_GROUP", "delivery-location-consumer")
	v.SetDefault("GEO_RATE_PER_SEC", "5")
	v.SetDefault("ROUTE_CACHE_TTL", "10m")
	v.SetDefault("PLATFORM_NAME", "NYC Delivery")
	v.SetDefault("SUBSCRIPTION_DAYS", "30")
	v.SetDefault("DELIVERY_RADIUS_KM", "15")
	v.SetDefault("OFFER_TOP_N", "5")
	v.SetDefault("METRICS_ADDR", ":2112")
	return v
}

func LoadServerConfig() (ServerConfig, error) {
	v := newViper()
	var cfg ServerConfig
	var errs []error

	cfg.HTTPAddr = getString(v, "HTTP_ADDR")
	setDuration(v, &cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDuration(v, &cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDuration(v, &cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDuration(v, &cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.LogLevel = strings.ToLower(getString(v, "LOG_LEVEL"))

	cfg.StoreBackend = strings.ToLower(getString(v, "STORE_BACKEND"))
	cfg.DBFile = getString(v, "DB_FILE")
	cfg.PGDSN = v.GetString("PG_DSN")
	cfg.RedisAddr = getString(v, "REDIS_ADDR")
	cfg.RedisPassword = v.GetString("REDIS_PASSWORD")
	cfg.RedisStateKey = getString(v, "REDIS_STATE_KEY")
	cfg.RedisGeoKey = getString(v, "REDIS_GEO_KEY")

	cfg.KafkaBrokers = splitAndTrim(v.GetString("KAFKA_BROKERS"))
	cfg.KafkaLocationTopic = getString(v, "KAFKA_LOCATION_TOPIC")
	cfg.KafkaOrderTopic = getString(v, "KAFKA_ORDER_TOPIC")

	cfg.MapboxToken = getString(v, "MAPBOX_ACCESS_TOKEN")
	cfg.GoogleMapsKey = getString(v, "GOOGLE_MAPS_API_KEY")
	cfg.OSRMURL = strings.TrimRight(getString(v, "OSRM_URL"), "/")
	cfg.GeoProvider = strings.ToLower(getString(v, "GEO_PROVIDER"))
	setFloat(v, &cfg.GeoRatePerSec, "GEO_RATE_PER_SEC", &errs)
	setDuration(v, &cfg.RouteCacheTTL, "ROUTE_CACHE_TTL", &errs)

	cfg.TwilioAccountSID = getString(v, "TWILIO_ACCOUNT_SID")
	cfg.TwilioAuthToken = getString(v, "TWILIO_AUTH_TOKEN")
	cfg.TwilioPhoneNumber = getString(v, "TWILIO_PHONE_NUMBER")

	cfg.PlatformName = getString(v, "PLATFORM_NAME")
	setInt(v, &cfg.SubscriptionDays, "SUBSCRIPTION_DAYS", &errs)
	setFloat(v, &cfg.DeliveryRadiusKm, "DELIVERY_RADIUS_KM", &errs)
	setInt(v, &cfg.OfferTopN, "OFFER_TOP_N", &errs)

	if cfg.GeoProvider == "" {
		cfg.GeoProvider = inferGeoProvider(cfg)
	}
	errs = append(errs, cfg.validate()...)
	return cfg, errors.Join(errs...)
}

// inferGeoProvider picks whichever provider is configured, Mapbox first.
func inferGeoProvider(cfg ServerConfig) string {
	switch {
	case cfg.MapboxToken != "":
		return GeoMapbox
	case cfg.GoogleMapsKey != "":
		return GeoGoogle
	case cfg.OSRMURL != "":
		return GeoOSRM
	default:
		return GeoNone
	}
}

func (cfg ServerConfig) validate() []error {
	var errs []error
	switch cfg.StoreBackend {
	case BackendFile:
		if cfg.DBFile == "" {
			errs = append(errs, fmt.Errorf("DB_FILE is required for the file backend"))
		}
	case BackendPostgres:
		if cfg.PGDSN == "" {
			errs = append(errs, fmt.Errorf("PG_DSN is required for the postgres backend"))
		}
	case BackendRedis:
		if cfg.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("REDIS_ADDR is required for the redis backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of file, postgres, redis, memory; got %q", cfg.StoreBackend))
	}

	switch cfg.GeoProvider {
	case GeoMapbox:
		if cfg.MapboxToken == "" {
			errs = append(errs, fmt.Errorf("MAPBOX_ACCESS_TOKEN is required for GEO_PROVIDER=mapbox"))
		}
	case GeoGoogle:
		if cfg.GoogleMapsKey == "" {
			errs = append(errs, fmt.Errorf("GOOGLE_MAPS_API_KEY is required for GEO_PROVIDER=google"))
		}
	case GeoOSRM:
		if cfg.OSRMURL == "" {
			errs = append(errs, fmt.Errorf("OSRM_URL is required for GEO_PROVIDER=osrm"))
		}
	case GeoNone:
	default:
		errs = append(errs, fmt.Errorf("GEO_PROVIDER must be one of mapbox, google, osrm, none; got %q", cfg.GeoProvider))
	}

	if cfg.SubscriptionDays <= 0 {
		errs = append(errs, fmt.Errorf("SUBSCRIPTION_DAYS must be > 0"))
	}
	if cfg.DeliveryRadiusKm < 0 {
		errs = append(errs, fmt.Errorf("DELIVERY_RADIUS_KM must be >= 0"))
	}
	if cfg.OfferTopN <= 0 {
		errs = append(errs, fmt.Errorf("OFFER_TOP_N must be > 0"))
	}
	if cfg.GeoRatePerSec < 0 {
		errs = append(errs, fmt.Errorf("GEO_RATE_PER_SEC must be >= 0"))
	}
	return errs
}

// TwilioConfigured reports whether all SMS credentials are present.
func (cfg ServerConfig) TwilioConfigured() bool {
	return cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioPhoneNumber != ""
}

// ConsumerConfig configures the location stream consumer.
type ConsumerConfig struct {
	MetricsAddr   string
	LogLevel      string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroup    string
	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	v := newViper()
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("REDIS_ADDR", "localhost:6379")

	cfg := ConsumerConfig{
		MetricsAddr:   getString(v, "METRICS_ADDR"),
		LogLevel:      strings.ToLower(getString(v, "LOG_LEVEL")),
		KafkaBrokers:  splitAndTrim(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:    getString(v, "KAFKA_LOCATION_TOPIC"),
		KafkaGroup:    getString(v, "KAFKA_GROUP"),
		RedisAddr:     getString(v, "REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisGeoKey:   getString(v, "REDIS_GEO_KEY"),
	}
	var errs []error
	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must list at least one broker"))
	}
	if cfg.KafkaTopic == "" {
		errs = append(errs, fmt.Errorf("KAFKA_LOCATION_TOPIC is required"))
	}
	return cfg, errors.Join(errs...)
}

func getString(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func setDuration(v *viper.Viper, target *time.Duration, key string, errs *[]error) {
	if s := getString(v, key); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloat(v *viper.Viper, target *float64, key string, errs *[]error) {
	if s := getString(v, key); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setInt(v *viper.Viper, target *int, key string, errs *[]error) {
	if s := getString(v, key); s != "" {
		i, err := strconv.Atoi(s)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
