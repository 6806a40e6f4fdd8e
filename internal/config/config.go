package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultInstances are the Invidious mirrors tried after Endpoint.
var DefaultInstances = []string{
	"https://yewtu.be",
	"https://inv.riverside.rocks",
	"https://invidious.snopyta.org",
	"https://yt.artemislena.eu",
}

// Config holds every job's settings. Load fills it from the environment;
// subcommand flags override individual fields before it is passed on.
// Nothing reads Config from a package variable.
type Config struct {
	// Manifest refresh (streams)
	Endpoint   string        // primary Invidious instance
	FolderName string        // output folder for <slug>.m3u8
	Timeout    time.Duration // per HTTP request
	MaxRetries int
	RetryDelay time.Duration
	Sources    []string // ordered source names: invidious, direct, browser
	UserAgent  string
	HostRPS    float64 // requests per second per upstream host; 0 = unlimited
	Verbose    bool
	// Optional run outputs.
	MetricsFile string // Prometheus textfile; "" = disabled
	HistoryPath string // SQLite run ledger; "" = disabled

	// Browser (scrape job and browser source)
	ChromePath  string
	BrowserWait time.Duration // blind wait after navigation for requests to fire
	BrowserHost string        // page targets: only capture playlists from this host; "" = any

	// EPG
	EPGURL        string
	EPGOutput     string
	EPGChannelMap string
	DropboxPath   string
	// Dropbox OAuth app credentials; read-only.
	DropboxRefreshToken string
	DropboxAppKey       string
	DropboxAppSecret    string

	// Edge worker
	CFAccountID    string
	CFAPIToken     string
	PagesURL       string
	WorkerName     string
	WorkerScript   string
	WorkerPlaylist string
	WorkerURL      string // deployed worker, for check
	ProxyAddr      string
}

// Load reads config from environment. Call LoadEnvFile(".env") first to use a .env file.
func Load() *Config {
	c := &Config{
		Endpoint:            getEnv("ENDPOINT", DefaultInstances[0]),
		FolderName:          getEnv("FOLDER_NAME", "streams"),
		Timeout:             getEnvSeconds("STREAM_REFRESH_TIMEOUT", 30*time.Second),
		MaxRetries:          getEnvInt("STREAM_REFRESH_RETRIES", 3),
		RetryDelay:          getEnvSeconds("STREAM_REFRESH_RETRY_DELAY", 2*time.Second),
		Sources:             getEnvList("STREAM_REFRESH_SOURCES", []string{"invidious", "direct"}),
		UserAgent:           getEnv("STREAM_REFRESH_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		HostRPS:             getEnvFloat("STREAM_REFRESH_HOST_RPS", 2),
		Verbose:             getEnvBool("STREAM_REFRESH_VERBOSE", false),
		MetricsFile:         os.Getenv("STREAM_REFRESH_METRICS_FILE"),
		HistoryPath:         os.Getenv("STREAM_REFRESH_HISTORY"),
		ChromePath:          os.Getenv("STREAM_REFRESH_CHROME"),
		BrowserWait:         getEnvSeconds("STREAM_REFRESH_BROWSER_WAIT", 10*time.Second),
		BrowserHost:         os.Getenv("STREAM_REFRESH_BROWSER_HOST"),
		EPGURL:              getEnv("EPG_URL", "https://belgeselsemo.com.tr/yayin-akisi2/xml/turkey3.xml"),
		EPGOutput:           getEnv("EPG_OUTPUT", "epg_updated.xml"),
		EPGChannelMap:       getEnv("EPG_CHANNEL_MAP", "kanalid.txt"),
		DropboxPath:         getEnv("DROPBOX_PATH", "/epg_updated.xml"),
		DropboxRefreshToken: os.Getenv("DROPBOX_REFRESH_TOKEN"),
		DropboxAppKey:       os.Getenv("DROPBOX_APP_KEY"),
		DropboxAppSecret:    os.Getenv("DROPBOX_APP_SECRET"),
		CFAccountID:         os.Getenv("CF_ACCOUNT_ID"),
		CFAPIToken:          os.Getenv("CF_API_TOKEN"),
		PagesURL:            os.Getenv("PAGES_URL"),
		WorkerName:          getEnv("WORKER_NAME", "macyayin"),
		WorkerScript:        getEnv("WORKER_SCRIPT", "worker.js"),
		WorkerPlaylist:      getEnv("WORKER_PLAYLIST", "androiptv.m3u8"),
		WorkerURL:           os.Getenv("WORKER_URL"),
		ProxyAddr:           getEnv("STREAM_REFRESH_PROXY_ADDR", ":8787"),
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	return c
}

// Instances returns the mirrors to try in order: Endpoint first, then
// STREAM_REFRESH_INSTANCES (comma-separated) or DefaultInstances, without duplicates.
func (c *Config) Instances() []string {
	rest := getEnvList("STREAM_REFRESH_INSTANCES", DefaultInstances)
	seen := make(map[string]bool, len(rest)+1)
	out := make([]string, 0, len(rest)+1)
	for _, u := range append([]string{c.Endpoint}, rest...) {
		u = strings.TrimSuffix(strings.TrimSpace(u), "/")
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// HasDropbox reports whether all Dropbox credentials are present.
func (c *Config) HasDropbox() bool {
	return c.DropboxRefreshToken != "" && c.DropboxAppKey != "" && c.DropboxAppSecret != ""
}

// HasCloudflare reports whether worker deploy credentials are present.
func (c *Config) HasCloudflare() bool {
	return c.CFAccountID != "" && c.CFAPIToken != ""
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, _ := strconv.Atoi(v)
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

// getEnvSeconds accepts a Go duration ("45s", "2m") or bare seconds ("30"),
// matching how the old scripts took their timeouts.
func getEnvSeconds(key string, defaultVal time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	return SplitList(s)
}

// SplitList splits a comma-separated list, trimming blanks.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
