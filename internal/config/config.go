package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	"github.com/totegamma/lostfound/internal/domain"
)

type Config struct {
	Server  Server            `yaml:"server"`
	Offices map[string]Office `yaml:"offices"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	PublicBaseURL string `yaml:"publicBaseURL"` // item detail page, encoded into QR codes
	AssetBaseURL  string `yaml:"assetBaseURL"`  // where /files is reachable from outside
	DataDir       string `yaml:"dataDir"`
	DefaultOffice string `yaml:"defaultOffice"`
	CorruptPolicy string `yaml:"corruptPolicy"` // fail, empty
	FileLock      bool   `yaml:"fileLock"`
	QRSize        int    `yaml:"qrSize"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Office struct {
	DisplayName string   `yaml:"displayName"`
	TerytCode   string   `yaml:"teryt"`
	OperatorID  string   `yaml:"operatorId"`
	Shelf       string   `yaml:"shelf"`
	APIKeyHash  string   `yaml:"apiKeyHash"` // bcrypt
	Template    Template `yaml:"template"`
}

type Template struct {
	Categories  []string       `yaml:"categories"`
	Resources   any            `yaml:"resources"`
	Tags        []string       `yaml:"tags"`
	Supplements map[string]any `yaml:"supplements"`
}

var officeName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, errors.Wrapf(err, "decode %s", path)
	}

	config.setDefaults()

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) setDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Server.DataDir == "" {
		c.Server.DataDir = "data"
	}
	if c.Server.AssetBaseURL == "" {
		c.Server.AssetBaseURL = "/files"
	}
	if c.Server.CorruptPolicy == "" {
		c.Server.CorruptPolicy = "fail"
	}
	if c.Server.DefaultOffice == "" && len(c.Offices) == 1 {
		for name := range c.Offices {
			c.Server.DefaultOffice = name
		}
	}
}

func (c Config) Validate() error {
	if c.Server.PublicBaseURL == "" {
		return errors.New("server.publicBaseURL is required")
	}
	if len(c.Offices) == 0 {
		return errors.New("at least one office is required")
	}
	for name := range c.Offices {
		if !officeName.MatchString(name) {
			return errors.Errorf("invalid office name %q", name)
		}
	}
	if c.Server.DefaultOffice != "" {
		if _, ok := c.Offices[c.Server.DefaultOffice]; !ok {
			return errors.Errorf("default office %q is not configured", c.Server.DefaultOffice)
		}
	}
	switch c.Server.CorruptPolicy {
	case "fail", "empty":
	default:
		return errors.Errorf("unknown corruptPolicy %q", c.Server.CorruptPolicy)
	}
	return nil
}

// DomainOffices converts the office table into domain values, sorted by name.
func (c Config) DomainOffices() []domain.Office {
	names := make([]string, 0, len(c.Offices))
	for name := range c.Offices {
		names = append(names, name)
	}
	sort.Strings(names)

	offices := make([]domain.Office, 0, len(names))
	for _, name := range names {
		o := c.Offices[name]
		offices = append(offices, domain.Office{
			Name:        name,
			DisplayName: o.DisplayName,
			TerytCode:   o.TerytCode,
			OperatorID:  o.OperatorID,
			Shelf:       o.Shelf,
			APIKeyHash:  o.APIKeyHash,
			Template: domain.Template{
				Categories:  o.Template.Categories,
				Resources:   normalize(o.Template.Resources),
				Tags:        o.Template.Tags,
				Supplements: normalizeMap(o.Template.Supplements),
			},
		})
	}
	return offices
}

// normalize rewrites the map[interface{}]interface{} values produced by the
// yaml decoder into map[string]any so templates can be JSON encoded.
func normalize(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case map[string]any:
		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}
