package edge

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snapetech/streamrefresh/internal/httpclient"
	"github.com/snapetech/streamrefresh/internal/metrics"
	"github.com/snapetech/streamrefresh/internal/safeurl"
)

const Banner = "stream-refresh edge proxy active\n"

var absURLRe = regexp.MustCompile(`https://[^ \r\n]+`)

// Proxy is the playlist proxy: /checklist/<id> serves BaseURL+<id> with every
// https URL routed through /proxy/, and /proxy/<escaped url> relays the
// request with BaseURL as Referer.
type Proxy struct {
	BaseURL  string // upstream playlist prefix, e.g. https://site/checklist/
	Client   *http.Client
	CacheTTL time.Duration // rewritten playlists; 0 = no cache

	cache   *expirable.LRU[string, string]
	reg     *prometheus.Registry
	metrics *metrics.Proxy
}

// NewProxy returns a proxy with its own metrics registry.
func NewProxy(baseURL string, client *http.Client, cacheTTL time.Duration) *Proxy {
	if client == nil {
		client = httpclient.Default()
	}
	p := &Proxy{BaseURL: baseURL, Client: client, CacheTTL: cacheTTL, reg: prometheus.NewRegistry()}
	p.metrics = metrics.NewProxy(p.reg)
	if cacheTTL > 0 {
		p.cache = expirable.NewLRU[string, string](128, nil, cacheTTL)
	}
	return p
}

// Rewrite replaces each https URL in a playlist by /proxy/<escaped url>.
func Rewrite(playlist string) string {
	return absURLRe.ReplaceAllStringFunc(playlist, func(m string) string {
		return "/proxy/" + url.QueryEscape(m)
	})
}

// Handler routes the proxy endpoints. Paths are matched escaped so proxied
// URLs survive intact.
func (p *Proxy) Handler() http.Handler {
	r := mux.NewRouter()
	r.SkipClean(true)
	r.UseEncodedPath()
	r.Methods(http.MethodOptions).HandlerFunc(p.options)
	r.Handle("/metrics", promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{}))
	r.PathPrefix("/proxy/").HandlerFunc(p.relay)
	r.PathPrefix("/checklist/").HandlerFunc(p.checklist)
	r.PathPrefix("/").HandlerFunc(p.banner)
	return r
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
}

func (p *Proxy) options(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())
	w.WriteHeader(http.StatusOK)
	p.count("options", http.StatusOK)
}

func (p *Proxy) banner(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, Banner)
	p.count("banner", http.StatusOK)
}

func (p *Proxy) relay(w http.ResponseWriter, r *http.Request) {
	target, ok := safeurl.Unescape(strings.TrimPrefix(r.URL.EscapedPath(), "/proxy/"))
	if !ok {
		p.fail(w, "proxy", http.StatusBadRequest, "Proxy Error: bad target")
		return
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		p.fail(w, "proxy", http.StatusBadRequest, "Proxy Error: "+err.Error())
		return
	}
	req.Header.Set("Referer", p.BaseURL)
	resp, err := p.Client.Do(req)
	if err != nil {
		p.fail(w, "proxy", http.StatusBadGateway, "Proxy Error: "+err.Error())
		return
	}
	defer resp.Body.Close()
	setCORS(w.Header())
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("proxy: relay %s: %v", target, err)
	}
	p.count("proxy", resp.StatusCode)
}

func (p *Proxy) checklist(w http.ResponseWriter, r *http.Request) {
	cid := strings.TrimPrefix(r.URL.EscapedPath(), "/checklist/")
	upstream := p.BaseURL + cid
	text, ok := "", false
	if p.cache != nil {
		text, ok = p.cache.Get(upstream)
	}
	if ok {
		p.metrics.CacheHits.Inc()
	} else {
		p.metrics.CacheMisses.Inc()
		body, err := p.fetch(r, upstream)
		if err != nil {
			p.fail(w, "checklist", http.StatusBadGateway, "Fetch Error: "+err.Error())
			return
		}
		text = Rewrite(body)
		if p.cache != nil {
			p.cache.Add(upstream, text)
		}
	}
	setCORS(w.Header())
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	_, _ = io.WriteString(w, text)
	p.count("checklist", http.StatusOK)
}

func (p *Proxy) fetch(r *http.Request, u string) (string, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	return string(b), err
}

func (p *Proxy) fail(w http.ResponseWriter, route string, code int, msg string) {
	setCORS(w.Header())
	http.Error(w, msg, code)
	p.count(route, code)
}

func (p *Proxy) count(route string, code int) {
	p.metrics.Requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
