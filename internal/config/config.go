package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
)

// Global configuration structure.
type Global struct {
	// Long-format input columns
	ParameterColumn string `mapstructure:"parameter_column" yaml:"parameter_column"`
	ValueColumn     string `mapstructure:"value_column" yaml:"value_column"`
	PointColumn     string `mapstructure:"point_column" yaml:"point_column"`
	DateColumn      string `mapstructure:"date_column" yaml:"date_column"`
	DateFormat      string `mapstructure:"date_format" yaml:"date_format"`

	// Charge-balance error above which a record is flagged, in percent.
	ErrorThreshold float64 `mapstructure:"error_threshold" yaml:"error_threshold"`

	// Raw parameter label per ion symbol. An empty label leaves the ion unassigned.
	Labels map[string]string `mapstructure:"labels" yaml:"labels"`

	DBPath      string `mapstructure:"db_path" yaml:"db_path"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

// Keys lists the scalar settings accepted by Set, in display order.
var Keys = []string{
	"parameter_column", "value_column", "point_column", "date_column", "date_format",
	"error_threshold", "db_path", "metrics_file",
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".hydrochem"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.hydrochem/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Commands apply flags on top.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("HYDROCHEM")
	v.AutomaticEnv()

	v.SetDefault("parameter_column", "Parametro")
	v.SetDefault("value_column", "Valor")
	v.SetDefault("point_column", "Punto")
	v.SetDefault("date_column", "Fecha")
	v.SetDefault("date_format", "02/01/2006")
	v.SetDefault("error_threshold", 10.0)
	v.SetDefault("db_path", "")
	v.SetDefault("metrics_file", "")
	v.SetDefault("labels", defaultLabels())

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.DBPath == "" {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		c.DBPath = filepath.Join(dir, "runs.db")
	}
	return &c, nil
}

// defaultLabels is a generic map so viper merges it key by key with the file.
func defaultLabels() map[string]any {
	out := make(map[string]any, chem.NumIons)
	for ion, label := range chem.DefaultLabels() {
		out[ion.Symbol()] = label
	}
	return out
}

// Selection converts Labels into an ion-keyed rename selection. Ions absent
// from Labels keep their default label.
func (c *Global) Selection() (map[chem.Ion]string, error) {
	sel := chem.DefaultLabels()
	for k, label := range c.Labels {
		ion, err := chem.ParseIon(k)
		if err != nil {
			return nil, fmt.Errorf("config labels: %w", err)
		}
		sel[ion] = label
	}
	return sel, nil
}

// Set assigns one setting by key. Ion labels use the form "labels.<symbol>".
func (c *Global) Set(key, val string) error {
	if sym, ok := strings.CutPrefix(key, "labels."); ok {
		ion, err := chem.ParseIon(sym)
		if err != nil {
			return err
		}
		if c.Labels == nil {
			c.Labels = map[string]string{}
		}
		for k := range c.Labels {
			if other, err := chem.ParseIon(k); err == nil && other == ion {
				delete(c.Labels, k)
			}
		}
		c.Labels[ion.Symbol()] = val
		return nil
	}
	switch key {
	case "parameter_column":
		c.ParameterColumn = val
	case "value_column":
		c.ValueColumn = val
	case "point_column":
		c.PointColumn = val
	case "date_column":
		c.DateColumn = val
	case "date_format":
		c.DateFormat = val
	case "error_threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid float for error_threshold: %v", val)
		}
		c.ErrorThreshold = f
	case "db_path":
		c.DBPath = val
	case "metrics_file":
		c.MetricsFile = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// Get returns the display value of key.
func (c *Global) Get(key string) (string, error) {
	if sym, ok := strings.CutPrefix(key, "labels."); ok {
		ion, err := chem.ParseIon(sym)
		if err != nil {
			return "", err
		}
		sel, err := c.Selection()
		if err != nil {
			return "", err
		}
		return sel[ion], nil
	}
	switch key {
	case "parameter_column":
		return c.ParameterColumn, nil
	case "value_column":
		return c.ValueColumn, nil
	case "point_column":
		return c.PointColumn, nil
	case "date_column":
		return c.DateColumn, nil
	case "date_format":
		return c.DateFormat, nil
	case "error_threshold":
		return strconv.FormatFloat(c.ErrorThreshold, 'g', -1, 64), nil
	case "db_path":
		return c.DBPath, nil
	case "metrics_file":
		return c.MetricsFile, nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// LabelKeys returns the label keys in canonical ion order.
func (c *Global) LabelKeys() []string {
	keys := make([]string, 0, chem.NumIons)
	for _, ion := range chem.All() {
		keys = append(keys, "labels."+ion.Symbol())
	}
	return keys
}
