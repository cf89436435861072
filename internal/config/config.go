package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Paths     PathsConfig
	Classes   ClassesConfig
	Matcher   MatcherConfig
	Embedding EmbeddingConfig
	Capture   CaptureConfig
	SMTP      SMTPConfig
	Mail      MailConfig
	Notify    NotifyConfig
	Web       WebConfig
	Log       LogConfig
}

// PathsConfig points at the data root holding classes/, faces/ and attendance/.
type PathsConfig struct {
	DataDir string
}

func (p PathsConfig) ClassesDir() string    { return filepath.Join(p.DataDir, "classes") }
func (p PathsConfig) FacesDir() string      { return filepath.Join(p.DataDir, "faces") }
func (p PathsConfig) AttendanceDir() string { return filepath.Join(p.DataDir, "attendance") }

type ClassesConfig struct {
	Valid   []string `yaml:"valid"`
	Default string   `yaml:"default"`
}

type MatcherConfig struct {
	Metric    string  // "euclidean" or "cosine"
	Tolerance float64 // maximum accepted distance for the selected metric
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
}

type CaptureConfig struct {
	Device int           // camera index passed to OpenCV
	Tick   time.Duration // interval between capture cycles
	Scale  float64       // frame downscale factor before detection (0 < scale <= 1)
}

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	password   string
	From       string
	Recipients []string
	SSL        bool // implicit TLS (465) instead of STARTTLS
}

// GetPassword returns the SMTP password. It is kept unexported so it never
// ends up in printed or serialized config.
func (c *SMTPConfig) GetPassword() string {
	return c.password
}

// Configured reports whether enough is set to attempt a send.
func (c *SMTPConfig) Configured() bool {
	return c.Host != "" && c.Username != "" && c.password != "" && len(c.Recipients) > 0
}

// MailConfig holds text/template sources for the report e-mail.
type MailConfig struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type NotifyConfig struct {
	URLs []string // shoutrrr service URLs
}

type WebConfig struct {
	Host string
	Port int
}

type LogConfig struct {
	Level string // debug, info, warn, error
	File  string // optional rotated log file
}

type defaults struct {
	Classes ClassesConfig `yaml:"classes"`
	Matcher struct {
		Metric     string             `yaml:"metric"`
		Tolerances map[string]float64 `yaml:"tolerances"`
	} `yaml:"matcher"`
	Capture struct {
		Tick  string  `yaml:"tick"`
		Scale float64 `yaml:"scale"`
	} `yaml:"capture"`
	Mail MailConfig `yaml:"mail"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envIndex is like envInt but accepts zero.
func envIndex(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat parses a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	metric := strings.ToLower(envString("MATCH_METRIC", d.Matcher.Metric))
	if _, ok := d.Matcher.Tolerances[metric]; !ok {
		metric = d.Matcher.Metric
	}
	tick, err := time.ParseDuration(d.Capture.Tick)
	if err != nil {
		tick = 100 * time.Millisecond
	}

	valid := envList("VALID_CLASSES", d.Classes.Valid)
	for i := range valid {
		valid[i] = NormalizeClass(valid[i])
	}
	defaultClass := NormalizeClass(envString("DEFAULT_CLASS", d.Classes.Default))
	if !slices.Contains(valid, defaultClass) && len(valid) > 0 {
		defaultClass = valid[0]
	}

	username := os.Getenv("SMTP_USERNAME")
	scale := envFloat("CAPTURE_SCALE", d.Capture.Scale)
	if scale > 1 {
		scale = 1
	}

	return &Config{
		Paths: PathsConfig{
			DataDir: envString("DATA_DIR", "."),
		},
		Classes: ClassesConfig{
			Valid:   valid,
			Default: defaultClass,
		},
		Matcher: MatcherConfig{
			Metric:    metric,
			Tolerance: envFloat("MATCH_TOLERANCE", d.Matcher.Tolerances[metric]),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
		},
		Capture: CaptureConfig{
			Device: envIndex("CAMERA_DEVICE", 0),
			Tick:   envDuration("CAPTURE_TICK", tick),
			Scale:  scale,
		},
		SMTP: SMTPConfig{
			Host:       envString("SMTP_HOST", "smtp.gmail.com"),
			Port:       envInt("SMTP_PORT", 587),
			Username:   username,
			password:   os.Getenv("SMTP_PASSWORD"),
			From:       envString("SMTP_FROM", username),
			Recipients: envList("MAIL_RECIPIENTS", nil),
			SSL:        envBool("SMTP_SSL", false),
		},
		Mail: d.Mail,
		Notify: NotifyConfig{
			URLs: envList("NOTIFY_URLS", nil),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "127.0.0.1"),
			Port: envInt("WEB_PORT", 8080),
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
	}
}

// NormalizeClass upper-cases a class identifier and strips whitespace,
// so " cse-a" resolves to "CSE-A".
func NormalizeClass(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), "")
}

// IsValidClass reports whether the (normalized) class is in the configured set.
func (c *ClassesConfig) IsValidClass(class string) bool {
	return slices.Contains(c.Valid, NormalizeClass(class))
}

// ResolveClass maps operator input onto a valid class identifier.
// Invalid or empty input falls back to the default class; the bool is false in that case.
func (c *ClassesConfig) ResolveClass(input string) (string, bool) {
	class := NormalizeClass(input)
	if slices.Contains(c.Valid, class) {
		return class, true
	}
	return c.Default, false
}
