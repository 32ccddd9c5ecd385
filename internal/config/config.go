package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPort         = "8080"
	DefaultDBPath       = "reconciler.db"
	DefaultCacheDir     = "cache"
	DefaultUpcomingDays = 7
	DefaultTimezone     = "America/Sao_Paulo"

	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
)

// DefaultAllowedPaymentMethods lists the payment methods whose "payment"
// release rows are treated as sale credits. available_money is left out on
// purpose: those rows are balance transfers that reuse the payment token.
var DefaultAllowedPaymentMethods = []string{
	"master", "visa", "elo", "amex", "hipercard",
	"debmaster", "debvisa", "debelo",
	"pix", "bolbradesco", "pec", "consumer_credits",
}

var ConfigStore atomic.Value

type ServerConfig struct {
	Port string `json:"port" envconfig:"RECON_SERVER_PORT"`
}

type DataSourceConfig struct {
	Path string `json:"path" envconfig:"RECON_DB_PATH"`
}

type CacheConfig struct {
	Backend  string `json:"backend" envconfig:"RECON_CACHE_BACKEND"`
	Dir      string `json:"dir" envconfig:"RECON_CACHE_DIR"`
	RedisDNS string `json:"redis_dns" envconfig:"RECON_CACHE_REDIS_DNS"`
	TTLHours int    `json:"ttl_hours" envconfig:"RECON_CACHE_TTL_HOURS"`
}

type ReconciliationConfig struct {
	AllowedPaymentMethods []string `json:"allowed_payment_methods" envconfig:"RECON_ALLOWED_PAYMENT_METHODS"`
	UpcomingDays          int      `json:"upcoming_days" envconfig:"RECON_UPCOMING_DAYS"`
	Timezone              string   `json:"timezone" envconfig:"RECON_TIMEZONE"`
}

type InputConfig struct {
	SettlementDir string `json:"settlement_dir" envconfig:"RECON_SETTLEMENT_DIR"`
	ReleasesDir   string `json:"releases_dir" envconfig:"RECON_RELEASES_DIR"`
}

type Configuration struct {
	ProjectName    string               `json:"project_name" envconfig:"RECON_PROJECT_NAME"`
	LogLevel       string               `json:"log_level" envconfig:"RECON_LOG_LEVEL"`
	Server         ServerConfig         `json:"server"`
	DataSource     DataSourceConfig     `json:"data_source"`
	Cache          CacheConfig          `json:"cache"`
	Reconciliation ReconciliationConfig `json:"reconciliation"`
	Input          InputConfig          `json:"input"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cnf); err != nil {
			return fmt.Errorf("decode %s: %w", file, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	if err := envconfig.Process("recon", &cnf); err != nil {
		return err
	}

	if err := cnf.validateAndAddDefaults(); err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return nil
}

// InitConfig loads the configuration file (if present), applies environment
// overrides and configures the logger.
func InitConfig(configFile string) error {
	if err := loadConfigFromFile(configFile); err != nil {
		return err
	}
	cnf, _ := Fetch()
	logger(cnf.LogLevel)
	return nil
}

func Fetch() (*Configuration, error) {
	c, ok := ConfigStore.Load().(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded. Create reconciler.json or set RECON_* environment variables")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Settlement Reconciler"
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Path = strings.TrimSpace(cnf.DataSource.Path)
	cnf.Cache.Backend = strings.ToLower(strings.TrimSpace(cnf.Cache.Backend))

	if cnf.Server.Port == "" {
		cnf.Server.Port = DefaultPort
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DefaultPort)
	}
	if cnf.DataSource.Path == "" {
		cnf.DataSource.Path = DefaultDBPath
	}
	if cnf.Cache.Backend == "" {
		cnf.Cache.Backend = CacheBackendFile
	}
	if cnf.Cache.Dir == "" {
		cnf.Cache.Dir = DefaultCacheDir
	}
	if cnf.Reconciliation.UpcomingDays <= 0 {
		cnf.Reconciliation.UpcomingDays = DefaultUpcomingDays
	}
	if cnf.Reconciliation.Timezone == "" {
		cnf.Reconciliation.Timezone = DefaultTimezone
	}
	if len(cnf.Reconciliation.AllowedPaymentMethods) == 0 {
		cnf.Reconciliation.AllowedPaymentMethods = append([]string(nil), DefaultAllowedPaymentMethods...)
	}
	for i, m := range cnf.Reconciliation.AllowedPaymentMethods {
		cnf.Reconciliation.AllowedPaymentMethods[i] = strings.ToLower(strings.TrimSpace(m))
	}
	if cnf.Input.SettlementDir == "" {
		cnf.Input.SettlementDir = "data/settlement"
	}
	if cnf.Input.ReleasesDir == "" {
		cnf.Input.ReleasesDir = "data/releases"
	}
	if cnf.LogLevel == "" {
		cnf.LogLevel = "info"
	}

	return validation.ValidateStruct(&cnf.Cache,
		validation.Field(&cnf.Cache.Backend, validation.In(CacheBackendFile, CacheBackendRedis)),
		validation.Field(&cnf.Cache.RedisDNS, validation.When(cnf.Cache.Backend == CacheBackendRedis, validation.Required)),
		validation.Field(&cnf.Cache.TTLHours, validation.Min(0)),
	)
}

// Location resolves the configured timezone, falling back to UTC.
func (cnf *Configuration) Location() *time.Location {
	loc, err := time.LoadLocation(cnf.Reconciliation.Timezone)
	if err != nil {
		logrus.Warnf("unknown timezone %q, using UTC", cnf.Reconciliation.Timezone)
		return time.UTC
	}
	return loc
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(logrus.StandardLogger().Writer())
}
