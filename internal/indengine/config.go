package indengine

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"ta-enginev1/internal/indicator"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the indicator engine service.
// Values come from environment variables, with the indicator set
// optionally loaded from a YAML file.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	ConsumerGroup string
	ConsumerName  string

	Symbols []string // symbols whose bar streams we consume

	SnapshotIntervalS int
	SnapshotKey       string
	HTTPAddr          string // admin API (/reload, /configs)
	MetricsAddr       string // Prometheus /metrics + /healthz
	PELIntervalS      int
	PELMinIdleMs      int64
	MaxBufferedWrites int

	Indicators []indicator.Config
}

// LoadConfig reads all environment variables and returns a Config.
func LoadConfig() Config {
	cfg := Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", "data/indengine.db"),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "indengine"),
		ConsumerName:  getEnv("CONSUMER_NAME", "worker-1"),

		Symbols: parseSymbols(getEnv("SYMBOLS", "")),

		SnapshotIntervalS: getEnvInt("SNAPSHOT_INTERVAL_SEC", 30),
		SnapshotKey:       getEnv("SNAPSHOT_KEY", "ind:snapshot:engine"),
		HTTPAddr:          getEnv("INDENGINE_HTTP_ADDR", ":9095"),
		MetricsAddr:       getEnv("METRICS_ADDR", ":9090"),
		PELIntervalS:      getEnvInt("PEL_RECLAIM_INTERVAL_SEC", 30),
		PELMinIdleMs:      int64(getEnvInt("PEL_MIN_IDLE_MS", 60000)),
		MaxBufferedWrites: getEnvInt("MAX_BUFFERED_WRITES", 10000),
	}

	cfg.Indicators = loadIndicatorConfigs()
	return cfg
}

// loadIndicatorConfigs resolves the indicator set in priority order:
// INDICATORS_FILE (YAML) → INDICATOR_CONFIGS (spec string) → defaults.
func loadIndicatorConfigs() []indicator.Config {
	if path := os.Getenv("INDICATORS_FILE"); path != "" {
		configs, err := LoadIndicatorFile(path)
		if err != nil {
			log.Printf("[indengine] WARNING: %v — falling back to INDICATOR_CONFIGS", err)
		} else {
			log.Printf("[indengine] loaded %d indicator configs from %s", len(configs), path)
			return configs
		}
	}
	return ParseIndicatorSpecs(getEnv("INDICATOR_CONFIGS", ""))
}

// indicatorFile is the YAML shape of INDICATORS_FILE.
type indicatorFile struct {
	Indicators []indicator.Config `yaml:"indicators"`
}

// LoadIndicatorFile reads an indicator set from a YAML file:
//
//	indicators:
//	  - type: SMA
//	    period: 20
//	  - type: MACD
//	    period: 12
//	    slow: 26
//	    signal: 9
func LoadIndicatorFile(path string) ([]indicator.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read indicator file %s: %w", path, err)
	}
	var f indicatorFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse indicator file %s: %w", path, err)
	}
	if err := indicator.ValidateConfigs(f.Indicators); err != nil {
		return nil, fmt.Errorf("indicator file %s: %w", path, err)
	}
	return f.Indicators, nil
}

// ParseIndicatorSpecs parses a compact spec string into indicator configs.
// Format: comma-separated "TYPE:PARAM:PARAM..." entries, e.g.
// "SMA:20,EMA:9,RSI:14,MACD:12:26:9,BB:20:2,STOCHSLOW:14:3,TR,OBV".
// Returns defaults if input is empty.
func ParseIndicatorSpecs(s string) []indicator.Config {
	if s == "" {
		return indicator.DefaultConfigs()
	}

	var configs []indicator.Config
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cfg, err := parseSpec(part)
		if err != nil {
			log.Printf("[indengine] skipping invalid indicator spec %q: %v", part, err)
			continue
		}
		configs = append(configs, cfg)
	}
	if len(configs) == 0 {
		log.Println("[indengine] WARNING: no valid indicators parsed, using defaults")
		return indicator.DefaultConfigs()
	}
	log.Printf("[indengine] loaded %d indicator specs from INDICATOR_CONFIGS", len(configs))
	return configs
}

// parseSpec parses one "TYPE:PARAM..." entry. Parameter meaning depends
// on the indicator family: MACD/PPO take fast:slow:signal, STOCHSLOW
// takes k:d, band indicators take period:multiplier.
func parseSpec(s string) (indicator.Config, error) {
	tokens := strings.Split(s, ":")
	typ := strings.ToUpper(strings.TrimSpace(tokens[0]))
	params := tokens[1:]

	cfg := indicator.Config{Type: typ}
	switch typ {
	case "TR", "OBV":
		if len(params) != 0 {
			return cfg, fmt.Errorf("%s takes no parameters", typ)
		}

	case "MACD", "PPO":
		if len(params) != 3 {
			return cfg, fmt.Errorf("%s needs fast:slow:signal", typ)
		}
		var err error
		if cfg.Period, err = atoiParam(params[0]); err != nil {
			return cfg, err
		}
		if cfg.Slow, err = atoiParam(params[1]); err != nil {
			return cfg, err
		}
		if cfg.Signal, err = atoiParam(params[2]); err != nil {
			return cfg, err
		}

	case "STOCHSLOW":
		if len(params) != 2 {
			return cfg, fmt.Errorf("STOCHSLOW needs k:d")
		}
		var err error
		if cfg.Period, err = atoiParam(params[0]); err != nil {
			return cfg, err
		}
		if cfg.D, err = atoiParam(params[1]); err != nil {
			return cfg, err
		}

	case "BB", "KC", "CHANDELIER":
		if len(params) < 1 || len(params) > 2 {
			return cfg, fmt.Errorf("%s needs period[:multiplier]", typ)
		}
		var err error
		if cfg.Period, err = atoiParam(params[0]); err != nil {
			return cfg, err
		}
		cfg.K = defaultMultiplier(typ)
		if len(params) == 2 {
			if cfg.K, err = strconv.ParseFloat(strings.TrimSpace(params[1]), 64); err != nil {
				return cfg, fmt.Errorf("bad multiplier %q", params[1])
			}
		}

	default:
		if len(params) != 1 {
			return cfg, fmt.Errorf("%s needs a single period", typ)
		}
		var err error
		if cfg.Period, err = atoiParam(params[0]); err != nil {
			return cfg, err
		}
	}

	// Reject unknown types and bad parameters up front.
	if _, err := cfg.New(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// defaultMultiplier returns the conventional band/stop multiplier.
func defaultMultiplier(typ string) float64 {
	switch typ {
	case "BB":
		return 2
	case "KC":
		return 2
	case "CHANDELIER":
		return 3
	}
	return 2
}

func atoiParam(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("bad period %q", s)
	}
	return n, nil
}

func parseSymbols(s string) []string {
	if s == "" {
		return nil
	}
	var symbols []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		symbols = append(symbols, p)
	}
	return symbols
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[indengine] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
