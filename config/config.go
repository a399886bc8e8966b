package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/degencred/credbot/internal/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	DefaultLoanTiers = "L1:100:0.12:7:1,L2:250:0.10:7:1,L3:500:0.08:10:1,L4:1000:0.07:14:1,L5:2000:0.05:14:1"
	DefaultRepLevels = "0,10,25,50,100"
)

type Config struct {
	TelegramBotToken string        `mapstructure:"TELEGRAM_BOT_TOKEN"`
	DBDriver         string        `mapstructure:"DB_DRIVER"`
	DB_URL           string        `mapstructure:"DB_URL"`
	DBMaxOpenConns   int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns   int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBTimeout        time.Duration `mapstructure:"DB_TIMEOUT"`
	AdminIDsRaw      string        `mapstructure:"ADMIN_IDS"`
	HealthAddr       string        `mapstructure:"HEALTH_ADDR"`
	MetricsEnabled   bool          `mapstructure:"METRICS_ENABLED"`
	SweepInterval    time.Duration `mapstructure:"SWEEP_INTERVAL"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	AccessFeeAmount  string        `mapstructure:"ACCESS_FEE_AMOUNT"`
	PaymentLink      string        `mapstructure:"PAYMENT_LINK"`
	PaymentAddress   string        `mapstructure:"PAYMENT_ADDRESS"`
	PaymentBotID     int64         `mapstructure:"PAYMENT_BOT_ID"`
	CommunityLink    string        `mapstructure:"COMMUNITY_LINK"`
	LoanTiersRaw     string        `mapstructure:"LOAN_TIERS"`
	RepLevelsRaw     string        `mapstructure:"REP_LEVELS"`

	AdminIDs  []int64                `mapstructure:"-"`
	Tiers     map[string]models.Tier `mapstructure:"-"`
	RepLevels []int64                `mapstructure:"-"`
	AccessFee decimal.Decimal        `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_URL", "data/degencred.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 1)
	v.SetDefault("DB_TIMEOUT", 5*time.Second)
	v.SetDefault("ADMIN_IDS", "")
	v.SetDefault("HEALTH_ADDR", ":8080")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("SWEEP_INTERVAL", 5*time.Minute)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ACCESS_FEE_AMOUNT", "5")
	v.SetDefault("PAYMENT_LINK", "")
	v.SetDefault("PAYMENT_ADDRESS", "")
	v.SetDefault("PAYMENT_BOT_ID", 0)
	v.SetDefault("COMMUNITY_LINK", "")
	v.SetDefault("LOAN_TIERS", DefaultLoanTiers)
	v.SetDefault("REP_LEVELS", DefaultRepLevels)
}

// LoadConfig reads an optional .env file at path and overlays the process
// environment. A missing file is not an error.
func LoadConfig(path string) (config Config, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return config, fmt.Errorf("failed to resolve config path: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(absPath)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.parse(); err != nil {
		return config, err
	}
	return config, nil
}

func (c *Config) parse() error {
	var err error
	if c.AdminIDs, err = ParseAdminIDs(c.AdminIDsRaw); err != nil {
		return err
	}
	if c.Tiers, err = ParseTiers(c.LoanTiersRaw); err != nil {
		return err
	}
	if c.RepLevels, err = ParseLevels(c.RepLevelsRaw); err != nil {
		return err
	}
	if c.AccessFee, err = decimal.NewFromString(strings.TrimSpace(c.AccessFeeAmount)); err != nil {
		return fmt.Errorf("invalid ACCESS_FEE_AMOUNT %q: %w", c.AccessFeeAmount, err)
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

func ParseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseTiers parses "id:max:rate:days:minLevel" entries separated by commas.
func ParseTiers(raw string) (map[string]models.Tier, error) {
	tiers := make(map[string]models.Tier)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		f := strings.Split(entry, ":")
		if len(f) != 5 {
			return nil, fmt.Errorf("invalid tier %q: want id:max:rate:days:minLevel", entry)
		}
		maxAmount, err := decimal.NewFromString(f[1])
		if err != nil || !maxAmount.IsPositive() {
			return nil, fmt.Errorf("invalid max amount in tier %q", entry)
		}
		rate, err := decimal.NewFromString(f[2])
		if err != nil || rate.IsNegative() {
			return nil, fmt.Errorf("invalid interest rate in tier %q", entry)
		}
		days, err := strconv.Atoi(f[3])
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("invalid repayment period in tier %q", entry)
		}
		minLevel, err := strconv.Atoi(f[4])
		if err != nil || minLevel < 1 {
			return nil, fmt.Errorf("invalid min level in tier %q", entry)
		}
		id := strings.ToUpper(f[0])
		if _, dup := tiers[id]; dup {
			return nil, fmt.Errorf("duplicate tier %q", id)
		}
		tiers[id] = models.Tier{
			ID:                  id,
			MaxAmount:           maxAmount,
			InterestRate:        rate,
			RepaymentPeriodDays: days,
			MinLevel:            minLevel,
		}
	}
	if len(tiers) == 0 {
		return nil, errors.New("no loan tiers configured")
	}
	return tiers, nil
}

// ParseLevels parses the reputation minimums for levels 1..n. The list must
// be ascending (equal neighbours allowed) and start at 0.
func ParseLevels(raw string) ([]int64, error) {
	var levels []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reputation level %q: %w", part, err)
		}
		levels = append(levels, n)
	}
	if len(levels) == 0 || levels[0] != 0 {
		return nil, errors.New("reputation levels must start at 0")
	}
	if !sort.SliceIsSorted(levels, func(i, j int) bool { return levels[i] < levels[j] }) {
		return nil, errors.New("reputation levels must be ascending")
	}
	return levels, nil
}
