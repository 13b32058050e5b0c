package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/lib/pq"
	"github.com/spf13/viper"

	"github.com/cali-upid/internal/coords"
	"github.com/cali-upid/internal/record"
)

// Config holds all application configuration.
type Config struct {
	Envelope   coords.Envelope   `mapstructure:"envelope"`
	Pipeline   PipelineConfig    `mapstructure:"pipeline"`
	References []ReferenceConfig `mapstructure:"references"`
	Server     ServerConfig      `mapstructure:"server"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Debug      bool              `mapstructure:"debug"`
}

type PipelineConfig struct {
	Workers        int      `mapstructure:"workers"`
	Precision      int      `mapstructure:"precision"`
	IDField        string   `mapstructure:"id_field"`
	SourceField    string   `mapstructure:"source_field"`
	CategoryField  string   `mapstructure:"category_field"`
	LatField       string   `mapstructure:"lat_field"`
	LonField       string   `mapstructure:"lon_field"`
	OptionalFields []string `mapstructure:"optional_fields"`
	ProgressEvery  int      `mapstructure:"progress_every"`
}

// ReferenceConfig describes one polygon file records are matched against.
type ReferenceConfig struct {
	Name          string   `mapstructure:"name"`
	File          string   `mapstructure:"file"`
	LabelField    string   `mapstructure:"label_field"`
	OutputField   string   `mapstructure:"output_field"`
	ExcludeLinear bool     `mapstructure:"exclude_linear"`
	ExcludeField  string   `mapstructure:"exclude_field"`
	ExcludeValues []string `mapstructure:"exclude_values"`
}

// Output returns the record field the match label is written to.
func (r ReferenceConfig) Output() string {
	if r.OutputField != "" {
		return r.OutputField
	}
	return r.LabelField + "_val"
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	MaxBodyMB       int    `mapstructure:"max_body_mb"`
	BatchTimeout    int    `mapstructure:"batch_timeout"`
	APIKey          string `mapstructure:"api_key"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	TablePrefix string `mapstructure:"table_prefix"`
	MaxConns    int    `mapstructure:"max_conns"`
}

// DSN renders a lib/pq keyword/value connection string.
func (d DatabaseConfig) DSN() string {
	parts := []string{
		"host=" + quoteDSN(d.Host),
		fmt.Sprintf("port=%d", d.Port),
		"user=" + quoteDSN(d.User),
		"dbname=" + quoteDSN(d.DBName),
		"sslmode=" + quoteDSN(d.SSLMode),
	}
	if d.Password != "" {
		parts = append(parts, "password="+quoteDSN(d.Password))
	}
	return strings.Join(parts, " ")
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func setDefaults(v *viper.Viper) {
	env := coords.DefaultEnvelope()
	v.SetDefault("envelope.min_lat", env.MinLat)
	v.SetDefault("envelope.max_lat", env.MaxLat)
	v.SetDefault("envelope.min_lon", env.MinLon)
	v.SetDefault("envelope.max_lon", env.MaxLon)

	v.SetDefault("pipeline.workers", runtime.NumCPU())
	v.SetDefault("pipeline.precision", 10)
	v.SetDefault("pipeline.id_field", "upid")
	v.SetDefault("pipeline.source_field", "nombre_centro_gestor")
	v.SetDefault("pipeline.category_field", "clase_up")
	v.SetDefault("pipeline.lat_field", "lat")
	v.SetDefault("pipeline.lon_field", "lon")
	v.SetDefault("pipeline.optional_fields", []string{"barrio_vereda", "comuna_corregimiento"})
	v.SetDefault("pipeline.progress_every", 1000)

	v.SetDefault("references", []map[string]interface{}{
		{
			"name":           "barrios",
			"file":           "data/barrios_veredas.geojson",
			"label_field":    "barrio_vereda",
			"exclude_linear": true,
		},
		{
			"name":        "comunas",
			"file":        "data/comunas_corregimientos.geojson",
			"label_field": "comuna_corregimiento",
		},
	})

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.shutdown_timeout", 30)
	v.SetDefault("server.max_body_mb", 64)
	v.SetDefault("server.batch_timeout", 120)
	v.SetDefault("server.api_key", "")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "cali_upid")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.table_prefix", "upid")
	v.SetDefault("database.max_conns", 20)

	v.SetDefault("debug", false)
}

// Load reads configuration from defaults, an optional config file and
// environment variables. An empty path searches for config.yaml in the
// working directory and ./configs.
func Load(path string) (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		_ = v.ReadInConfig() // OK if missing
	}

	// Environment variables: UPID_DATABASE_HOST -> database.host
	v.SetEnvPrefix("UPID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// libpq variables keep working for the database block
	_ = v.BindEnv("database.host", "UPID_DATABASE_HOST", "PGHOST")
	_ = v.BindEnv("database.port", "UPID_DATABASE_PORT", "PGPORT")
	_ = v.BindEnv("database.user", "UPID_DATABASE_USER", "PGUSER")
	_ = v.BindEnv("database.password", "UPID_DATABASE_PASSWORD", "PGPASSWORD")
	_ = v.BindEnv("database.dbname", "UPID_DATABASE_DBNAME", "PGDATABASE")
	_ = v.BindEnv("database.sslmode", "UPID_DATABASE_SSLMODE", "PGSSLMODE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if err := c.Envelope.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Pipeline.Workers <= 0 {
		errs = append(errs, fmt.Sprintf("pipeline.workers must be positive, got %d", c.Pipeline.Workers))
	}
	if c.Pipeline.Precision < record.MinPrecision || c.Pipeline.Precision > 15 {
		errs = append(errs, fmt.Sprintf("pipeline.precision must be %d-15, got %d", record.MinPrecision, c.Pipeline.Precision))
	}
	if c.Pipeline.LatField == "" || c.Pipeline.LonField == "" {
		errs = append(errs, "pipeline.lat_field and pipeline.lon_field are required")
	}

	names := make(map[string]bool)
	outputs := make(map[string]bool)
	for i, r := range c.References {
		switch {
		case r.Name == "":
			errs = append(errs, fmt.Sprintf("references[%d].name is required", i))
		case names[r.Name]:
			errs = append(errs, fmt.Sprintf("references[%d].name %q is duplicated", i, r.Name))
		}
		names[r.Name] = true
		if r.File == "" {
			errs = append(errs, fmt.Sprintf("references[%d].file is required", i))
		}
		if r.LabelField == "" {
			errs = append(errs, fmt.Sprintf("references[%d].label_field is required", i))
		}
		if outputs[r.Output()] {
			errs = append(errs, fmt.Sprintf("references[%d] output field %q is duplicated", i, r.Output()))
		}
		outputs[r.Output()] = true
		if r.ExcludeField != "" && len(r.ExcludeValues) == 0 {
			errs = append(errs, fmt.Sprintf("references[%d].exclude_values required with exclude_field", i))
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.TablePrefix != "" && pq.QuoteIdentifier(c.Database.TablePrefix) != `"`+c.Database.TablePrefix+`"` {
		errs = append(errs, fmt.Sprintf("database.table_prefix %q must not contain quotes or NUL", c.Database.TablePrefix))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
