package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr       string
	JWTSecret      string
	AllowedOrigins []string

	RedisAddr string
	RedisDB   int
	MongoURI  string

	SeedFile       string
	ExclusionsFile string

	RemoteURL         string
	RemoteKey         string
	RemoteMinInterval time.Duration
	LocalModelURL     string

	LocalBudget          time.Duration
	RemoteBudget         time.Duration
	CacheTTL             time.Duration
	DebounceCooldown     time.Duration
	SamePlaceMeters      float64
	LocalFirstMinResults int
}

// Exclusions is the on-disk shape of the exclusion list.
type Exclusions struct {
	Denylist           []string `yaml:"denylist"`
	ExcludedCategories []string `yaml:"excluded_categories"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	cfg := &Config{
		HTTPAddr:       getString("HTTP_ADDR", ":8080"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitList(getString("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		MongoURI:       os.Getenv("MONGODB_URI"),
		SeedFile:       getString("POI_SEED_FILE", "./data/pois.json"),
		ExclusionsFile: getString("EXCLUSIONS_FILE", "./data/poi_exclusions.yaml"),
		RemoteURL:      os.Getenv("REMOTE_PROVIDER_URL"),
		RemoteKey:      os.Getenv("REMOTE_PROVIDER_KEY"),
		LocalModelURL:  os.Getenv("LOCAL_MODEL_URL"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.LocalFirstMinResults, err = getInt("LOCAL_FIRST_MIN_RESULTS", 1); err != nil {
		return nil, err
	}
	if cfg.SamePlaceMeters, err = getFloat("SAME_PLACE_METERS", 50); err != nil {
		return nil, err
	}
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"REMOTE_MIN_INTERVAL", 100 * time.Millisecond, &cfg.RemoteMinInterval},
		{"LOCAL_BUDGET", 350 * time.Millisecond, &cfg.LocalBudget},
		{"REMOTE_BUDGET", time.Second, &cfg.RemoteBudget},
		{"CACHE_TTL", time.Minute, &cfg.CacheTTL},
		{"DEBOUNCE_COOLDOWN", time.Minute, &cfg.DebounceCooldown},
	}
	for _, d := range durations {
		if *d.dest, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadExclusions parses the YAML exclusion list. A missing file yields an
// empty list.
func LoadExclusions(path string) (Exclusions, error) {
	var ex Exclusions
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Exclusions file %s not found, no POIs will be excluded", path)
			return ex, nil
		}
		return ex, fmt.Errorf("reading exclusions file: %w", err)
	}
	if err := yaml.Unmarshal(data, &ex); err != nil {
		return ex, fmt.Errorf("parsing exclusions file: %w", err)
	}
	return ex, nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
