// Package config reads process configuration from the environment and the
// optional planner YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"trip-assignment-service/internal/adapters/distance"
	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/platform/logger"
	"trip-assignment-service/internal/services"
	"trip-assignment-service/internal/zone"
)

// Get returns the environment value for key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) (int, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func GetFloat(key string, fallback float64) (float64, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func GetDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

// ORS configures the OpenRouteService client. An empty APIKey disables it.
type ORS struct {
	APIKey     string
	BaseURL    string
	Profile    string
	Country    string
	RatePerSec float64
}

type Config struct {
	Port        string
	DBPath      string
	DatabaseURL string
	RedisURL    string
	RedisTTL    time.Duration
	SeedPath    string

	ORS      ORS
	Distance distance.ProviderConfig

	Depot         domain.Coordinates
	PlannerConfig string

	Log logger.Config
}

// Load reads the environment. Malformed numeric values are reported
// together rather than one at a time.
func Load() (Config, error) {
	var errs []error
	intVar := func(key string, fallback int) int {
		n, err := GetInt(key, fallback)
		errs = append(errs, err)
		return n
	}
	floatVar := func(key string, fallback float64) float64 {
		f, err := GetFloat(key, fallback)
		errs = append(errs, err)
		return f
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		d, err := GetDuration(key, fallback)
		errs = append(errs, err)
		return d
	}

	def := distance.DefaultProviderConfig()
	logDef := logger.DefaultConfig()

	cfg := Config{
		Port:        Get("PORT", "8080"),
		DBPath:      Get("DB_PATH", "data/app.db"),
		DatabaseURL: Get("DATABASE_URL", ""),
		RedisURL:    Get("REDIS_URL", ""),
		RedisTTL:    durVar("REDIS_TTL", 30*24*time.Hour),
		SeedPath:    Get("SEED_PATH", "data/seeds/seed.json"),
		ORS: ORS{
			APIKey:     Get("ORS_API_KEY", ""),
			BaseURL:    Get("ORS_BASE_URL", ""),
			Profile:    Get("ORS_PROFILE", ""),
			Country:    Get("ORS_COUNTRY", "TH"),
			RatePerSec: floatVar("ORS_RATE_PER_SEC", 0.6),
		},
		Distance: distance.ProviderConfig{
			Workers:      intVar("DISTANCE_WORKERS", def.Workers),
			BatchSize:    intVar("DISTANCE_BATCH_SIZE", def.BatchSize),
			FlushEvery:   intVar("CACHE_FLUSH_EVERY", def.FlushEvery),
			DetourFactor: floatVar("DETOUR_FACTOR", def.DetourFactor),
			EstimateTTL:  def.EstimateTTL,
			FlushTimeout: def.FlushTimeout,
		},
		Depot: domain.Coordinates{
			Lat: floatVar("DEPOT_LAT", 13.7563),
			Lon: floatVar("DEPOT_LON", 100.5018),
		},
		PlannerConfig: Get("PLANNER_CONFIG", ""),
		Log: logger.Config{
			Level:      Get("LOG_LEVEL", logDef.Level),
			Format:     Get("LOG_FORMAT", logDef.Format),
			Output:     Get("LOG_OUTPUT", logDef.Output),
			TimeFormat: logDef.TimeFormat,
		},
	}

	if cfg.Depot.Lat < -90 || cfg.Depot.Lat > 90 || cfg.Depot.Lon < -180 || cfg.Depot.Lon > 180 {
		errs = append(errs, errors.New("config: depot coordinates out of range"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// PlannerFile is the YAML document behind PLANNER_CONFIG. Sections left out
// keep their built-in defaults.
type PlannerFile struct {
	Capacity domain.CapacityTable `yaml:"capacity"`
	Zones    zone.Table           `yaml:"zones"`
	Bearing  zone.Settings        `yaml:"bearing"`
	Planner  services.Options     `yaml:"planner"`
}

func DefaultPlannerFile() PlannerFile {
	return PlannerFile{
		Capacity: domain.DefaultCapacityTable(),
		Bearing:  zone.DefaultSettings(),
		Planner:  services.DefaultOptions(),
	}
}

// LoadPlannerFile overlays the YAML file at path on the defaults. An empty
// path returns the defaults.
func LoadPlannerFile(path string) (PlannerFile, error) {
	pf := DefaultPlannerFile()
	if path == "" {
		return pf, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return PlannerFile{}, fmt.Errorf("load planner config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return PlannerFile{}, fmt.Errorf("load planner config: parse %q: %w", path, err)
	}

	if _, err := domain.NewCapacityModel(pf.Capacity); err != nil {
		return PlannerFile{}, fmt.Errorf("load planner config: %w", err)
	}
	if err := pf.Planner.Validate(); err != nil {
		return PlannerFile{}, fmt.Errorf("load planner config: %w", err)
	}
	return pf, nil
}
