package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	SODA     SODAConfig     `yaml:"soda" mapstructure:"soda"`
	Datasets DatasetsConfig `yaml:"datasets" mapstructure:"datasets"`
	Linker   LinkerConfig   `yaml:"linker" mapstructure:"linker"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Snapshot SnapshotConfig `yaml:"snapshot" mapstructure:"snapshot"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SODAConfig configures access to the open-data (Socrata) API.
type SODAConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	AppToken     string  `yaml:"app_token" mapstructure:"app_token"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries   int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	PageSize     int     `yaml:"page_size" mapstructure:"page_size"`
	BatchSize    int     `yaml:"batch_size" mapstructure:"batch_size"`
	PageDelayMs  int     `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	BatchDelayMs int     `yaml:"batch_delay_ms" mapstructure:"batch_delay_ms"`
}

// DatasetsConfig holds the dataset identifiers for each source.
type DatasetsConfig struct {
	Base                 string `yaml:"base" mapstructure:"base"`
	Legals               string `yaml:"legals" mapstructure:"legals"`
	Master               string `yaml:"master" mapstructure:"master"`
	Permits              string `yaml:"permits" mapstructure:"permits"`
	Complaints           string `yaml:"complaints" mapstructure:"complaints"`
	Violations           string `yaml:"violations" mapstructure:"violations"`
	Registrations        string `yaml:"registrations" mapstructure:"registrations"`
	RegistrationContacts string `yaml:"registration_contacts" mapstructure:"registration_contacts"`
}

// LinkerConfig configures how auxiliary datasets are filtered and joined.
type LinkerConfig struct {
	// AreaColumn is the base-roster column matched against the area code.
	AreaColumn          string   `yaml:"area_column" mapstructure:"area_column"`
	DeedDocTypes        []string `yaml:"deed_doc_types" mapstructure:"deed_doc_types"`
	MortgageDocTypes    []string `yaml:"mortgage_doc_types" mapstructure:"mortgage_doc_types"`
	ComplaintWindowDays int      `yaml:"complaint_window_days" mapstructure:"complaint_window_days"`
	PermitLookbackYears int      `yaml:"permit_lookback_years" mapstructure:"permit_lookback_years"`
}

// ScoringConfig holds every heuristic constant used by the scorer.
type ScoringConfig struct {
	BaseScore       float64 `yaml:"base_score" mapstructure:"base_score"`
	LikelyThreshold float64 `yaml:"likely_threshold" mapstructure:"likely_threshold"`
	MaxLeads        int     `yaml:"max_leads" mapstructure:"max_leads"`

	RenovationJobTypes []string `yaml:"renovation_job_types" mapstructure:"renovation_job_types"`
	PermitWindowMonths int      `yaml:"permit_window_months" mapstructure:"permit_window_months"`

	ComplaintWindowDays     int      `yaml:"complaint_window_days" mapstructure:"complaint_window_days"`
	ComplaintGroupSize      int      `yaml:"complaint_group_size" mapstructure:"complaint_group_size"`
	SeriousComplaintTypes   []string `yaml:"serious_complaint_types" mapstructure:"serious_complaint_types"`
	ComplaintsPerUnitCutoff float64  `yaml:"complaints_per_unit_cutoff" mapstructure:"complaints_per_unit_cutoff"`

	LoanTermsYears      []int   `yaml:"loan_terms_years" mapstructure:"loan_terms_years"`
	MaturityWindowYears float64 `yaml:"maturity_window_years" mapstructure:"maturity_window_years"`
	MinLoanAgeYears     float64 `yaml:"min_loan_age_years" mapstructure:"min_loan_age_years"`
	OldLoanAgeYears     float64 `yaml:"old_loan_age_years" mapstructure:"old_loan_age_years"`

	EstateTokens []string `yaml:"estate_tokens" mapstructure:"estate_tokens"`

	FlipMaxTenureMonths int `yaml:"flip_max_tenure_months" mapstructure:"flip_max_tenure_months"`

	FARMinLotArea float64 `yaml:"far_min_lot_area" mapstructure:"far_min_lot_area"`
}

// StoreConfig configures the snapshot database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SnapshotConfig configures snapshot output files.
type SnapshotConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Version int    `yaml:"version" mapstructure:"version"`
}

// BatchConfig configures multi-area batch runs.
type BatchConfig struct {
	MaxConcurrentAreas int `yaml:"max_concurrent_areas" mapstructure:"max_concurrent_areas"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from an optional .env file, config.yaml and the
// environment (PARCEL_ prefix).
func Load() (*Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PARCEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("soda.base_url", "https://data.cityofnewyork.us")
	v.SetDefault("soda.app_token", "")
	v.SetDefault("soda.user_agent", "parcel-leads/1.0")
	v.SetDefault("soda.timeout_secs", 60)
	v.SetDefault("soda.max_retries", 3)
	v.SetDefault("soda.rate_per_sec", 5.0)
	v.SetDefault("soda.page_size", 5000)
	v.SetDefault("soda.batch_size", 50)
	v.SetDefault("soda.page_delay_ms", 100)
	v.SetDefault("soda.batch_delay_ms", 100)

	v.SetDefault("datasets.base", "64uk-42ks")
	v.SetDefault("datasets.legals", "8h5j-fqxa")
	v.SetDefault("datasets.master", "bnx9-e6tj")
	v.SetDefault("datasets.permits", "ic3t-wcy2")
	v.SetDefault("datasets.complaints", "erm6-tmwb")
	v.SetDefault("datasets.violations", "wvxf-dwi5")
	v.SetDefault("datasets.registrations", "tesw-yqqr")
	v.SetDefault("datasets.registration_contacts", "feu5-w2e2")

	v.SetDefault("linker.area_column", "zipcode")
	v.SetDefault("linker.deed_doc_types", []string{"DEED"})
	v.SetDefault("linker.mortgage_doc_types", []string{"MTGE", "AGMT"})
	v.SetDefault("linker.complaint_window_days", 30)
	v.SetDefault("linker.permit_lookback_years", 5)

	d := DefaultScoringConfig()
	v.SetDefault("scoring.base_score", d.BaseScore)
	v.SetDefault("scoring.likely_threshold", d.LikelyThreshold)
	v.SetDefault("scoring.max_leads", d.MaxLeads)
	v.SetDefault("scoring.renovation_job_types", d.RenovationJobTypes)
	v.SetDefault("scoring.permit_window_months", d.PermitWindowMonths)
	v.SetDefault("scoring.complaint_window_days", d.ComplaintWindowDays)
	v.SetDefault("scoring.complaint_group_size", d.ComplaintGroupSize)
	v.SetDefault("scoring.serious_complaint_types", d.SeriousComplaintTypes)
	v.SetDefault("scoring.complaints_per_unit_cutoff", d.ComplaintsPerUnitCutoff)
	v.SetDefault("scoring.loan_terms_years", d.LoanTermsYears)
	v.SetDefault("scoring.maturity_window_years", d.MaturityWindowYears)
	v.SetDefault("scoring.min_loan_age_years", d.MinLoanAgeYears)
	v.SetDefault("scoring.old_loan_age_years", d.OldLoanAgeYears)
	v.SetDefault("scoring.estate_tokens", d.EstateTokens)
	v.SetDefault("scoring.flip_max_tenure_months", d.FlipMaxTenureMonths)
	v.SetDefault("scoring.far_min_lot_area", d.FARMinLotArea)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "parcel-leads.db")
	v.SetDefault("snapshot.dir", "snapshots")
	v.SetDefault("snapshot.version", 1)
	v.SetDefault("batch.max_concurrent_areas", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// DefaultScoringConfig returns the stock scoring constants.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		BaseScore:       1.5,
		LikelyThreshold: 3.0,
		MaxLeads:        200,

		RenovationJobTypes: []string{"A1", "A2"},
		PermitWindowMonths: 12,

		ComplaintWindowDays: 30,
		ComplaintGroupSize:  5,
		SeriousComplaintTypes: []string{
			"HEAT/HOT WATER", "PLUMBING", "WATER LEAK", "NO WATER",
			"ELECTRIC", "ELEVATOR", "PAINT/PLASTER", "DOOR/WINDOW",
		},
		ComplaintsPerUnitCutoff: 0.15,

		LoanTermsYears:      []int{5, 7, 10, 15, 20, 25, 30},
		MaturityWindowYears: 1,
		MinLoanAgeYears:     4,
		OldLoanAgeYears:     20,

		EstateTokens: []string{
			"EXECUTOR", "EXECUTRIX", "ADMIN", "ADMINISTRATOR",
			"ESTATE", "HEIR", "DEVISEE", "SURV", "SURVIVOR",
		},

		FlipMaxTenureMonths: 36,

		FARMinLotArea: 2000,
	}
}

// Validate checks the settings a command needs. scope is one of "run",
// "store" or "serve".
func (c *Config) Validate(scope string) error {
	var errs []string

	switch scope {
	case "run", "serve":
		if c.SODA.BaseURL == "" {
			errs = append(errs, "soda.base_url is required")
		}
		if c.SODA.PageSize <= 0 {
			errs = append(errs, "soda.page_size must be > 0")
		}
		if c.SODA.BatchSize <= 0 {
			errs = append(errs, "soda.batch_size must be > 0")
		}
		if c.Datasets.Base == "" {
			errs = append(errs, "datasets.base is required")
		}
		if c.Linker.AreaColumn == "" {
			errs = append(errs, "linker.area_column is required")
		}
		if scope == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "store":
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown validation scope %q", scope)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
