// Command stream-refresh keeps playlist and guide files fresh for a static site.
//
//	streams  Refresh <slug>.m3u8 files from a targets file (Invidious, direct URL or browser capture)
//	probe    Probe Invidious instances and report OK / Cloudflare / fail with latency
//	epg      Download XMLTV, derive channel ids from display names, optionally upload to Dropbox
//	worker   Write the aggregate playlist, patch the edge script's BASE_URL and upload it
//	proxy    Run the edge playlist proxy locally
//	check    Check a deployed proxy end to end
//	scrape   Capture episode playlists from a category page with headless Chrome
//	history  Show recent outcomes and failure streaks from the run ledger
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/snapetech/streamrefresh/internal/browser"
	"github.com/snapetech/streamrefresh/internal/config"
	"github.com/snapetech/streamrefresh/internal/dropbox"
	"github.com/snapetech/streamrefresh/internal/edge"
	"github.com/snapetech/streamrefresh/internal/epg"
	"github.com/snapetech/streamrefresh/internal/health"
	"github.com/snapetech/streamrefresh/internal/history"
	"github.com/snapetech/streamrefresh/internal/httpclient"
	"github.com/snapetech/streamrefresh/internal/invidious"
	"github.com/snapetech/streamrefresh/internal/metrics"
	"github.com/snapetech/streamrefresh/internal/provider"
	"github.com/snapetech/streamrefresh/internal/refresh"
	"github.com/snapetech/streamrefresh/internal/retry"
	"github.com/snapetech/streamrefresh/internal/source"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <streams|probe|epg|worker|proxy|check|scrape|history> [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  streams  Refresh manifests: streams [flags] targets.json [more.json ...]\n")
	fmt.Fprintf(os.Stderr, "  probe    Probe Invidious instances (use -urls a,b,c to try specific hosts)\n")
	fmt.Fprintf(os.Stderr, "  epg      Rewrite XMLTV channel ids and upload to Dropbox when credentials are set\n")
	fmt.Fprintf(os.Stderr, "  worker   Build aggregate playlist and deploy the edge script (-dry-run to skip upload)\n")
	fmt.Fprintf(os.Stderr, "  proxy    Serve the edge proxy locally\n")
	fmt.Fprintf(os.Stderr, "  check    Check a deployed proxy (WORKER_URL)\n")
	fmt.Fprintf(os.Stderr, "  scrape   Capture episode playlists with headless Chrome\n")
	fmt.Fprintf(os.Stderr, "  history  Show recent outcomes: history [-db path] [-n 10] slug [slug ...]\n")
}

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[stream-refresh] ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var code int
	switch os.Args[1] {
	case "streams":
		code = runStreams(ctx, cfg, os.Args[2:])
	case "probe":
		code = runProbe(ctx, cfg, os.Args[2:])
	case "epg":
		code = runEPG(ctx, cfg, os.Args[2:])
	case "worker":
		code = runWorker(ctx, cfg, os.Args[2:])
	case "proxy":
		code = runProxy(ctx, cfg, os.Args[2:])
	case "check":
		code = runCheck(ctx, cfg, os.Args[2:])
	case "scrape":
		code = runScrape(ctx, cfg, os.Args[2:])
	case "history":
		code = runHistory(ctx, cfg, os.Stdout, os.Args[2:])
	default:
		usage()
		code = 1
	}
	stop()
	os.Exit(code)
}

func newRequester(cfg *config.Config) *httpclient.Requester {
	return &httpclient.Requester{
		Client:    httpclient.WithTimeout(cfg.Timeout),
		UserAgent: cfg.UserAgent,
		Limiter:   httpclient.NewHostLimiter(cfg.HostRPS, 1),
		Policy:    httpclient.NoRetry,
	}
}

// newGuideRequester is newRequester for the EPG download, which has no
// target-level retry and so gets one 429/5xx retry from the client.
func newGuideRequester(cfg *config.Config, timeout time.Duration) *httpclient.Requester {
	req := newRequester(cfg)
	req.Client = httpclient.WithTimeout(timeout)
	req.Policy = httpclient.DefaultRetryPolicy
	return req
}

// buildChain turns source names into an ordered chain. Unknown names are a
// configuration error.
func buildChain(cfg *config.Config, req *httpclient.Requester, instances []string) (source.Chain, error) {
	var chain source.Chain
	for _, name := range cfg.Sources {
		switch strings.ToLower(name) {
		case "invidious":
			c := invidious.New(cfg, req)
			if len(instances) > 0 {
				c.Instances = instances
			}
			chain = append(chain, c)
		case "direct":
			chain = append(chain, &source.Direct{Req: req})
		case "browser":
			chain = append(chain, &browser.Source{
				Opts: browser.Options{ChromePath: cfg.ChromePath, UserAgent: cfg.UserAgent, Wait: cfg.BrowserWait},
				Req:  req,
				Host: cfg.BrowserHost,
			})
		default:
			return nil, fmt.Errorf("unknown source %q (want invidious, direct or browser)", name)
		}
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}
	return chain, nil
}

func runStreams(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("streams", flag.ExitOnError)
	folder := fs.String("folder", cfg.FolderName, "Output folder (default: FOLDER_NAME)")
	endpoint := fs.String("endpoint", cfg.Endpoint, "Primary Invidious instance (default: ENDPOINT)")
	timeout := fs.Duration("timeout", cfg.Timeout, "Per-request timeout")
	retries := fs.Int("retries", cfg.MaxRetries, "Attempts per target")
	retryDelay := fs.Duration("retry-delay", cfg.RetryDelay, "Base delay before the second attempt; doubles after")
	sources := fs.String("sources", strings.Join(cfg.Sources, ","), "Ordered sources: invidious, direct, browser")
	verbose := fs.Bool("verbose", cfg.Verbose, "Log each lookup step and the variant ladder")
	failOnError := fs.Bool("fail-on-error", false, "Exit non-zero if any target failed")
	metricsFile := fs.String("metrics-file", cfg.MetricsFile, "Write a Prometheus textfile after the run")
	historyPath := fs.String("history", cfg.HistoryPath, "Append outcomes to this SQLite ledger")
	rankInstances := fs.Bool("rank-instances", false, "Probe instances first and try the fastest healthy one first")
	browserHost := fs.String("browser-host", cfg.BrowserHost, "Page targets: only capture playlists from this host (default: STREAM_REFRESH_BROWSER_HOST)")
	_ = fs.Parse(args)

	cfg.FolderName = *folder
	cfg.Endpoint = *endpoint
	cfg.Timeout = *timeout
	cfg.MaxRetries = *retries
	cfg.RetryDelay = *retryDelay
	cfg.Sources = config.SplitList(*sources)
	cfg.Verbose = *verbose
	cfg.BrowserHost = *browserHost

	files := fs.Args()
	if len(files) == 0 {
		log.Printf("streams: need at least one targets file")
		return 1
	}
	// Every file is loaded before any work so a bad one aborts the run cleanly.
	batches := make([][]config.Target, len(files))
	for i, f := range files {
		targets, err := config.LoadTargets(f)
		if err != nil {
			log.Printf("Load targets: %v", err)
			return 1
		}
		log.Printf("Loaded %d target(s) from %s", len(targets), f)
		batches[i] = targets
	}

	req := newRequester(cfg)
	var instances []string
	if *rankInstances {
		instances = provider.Ranked(ctx, cfg.Instances(), req.Client)
		log.Printf("Ranked instances: %s", strings.Join(instances, ", "))
	}
	chain, err := buildChain(cfg, req, instances)
	if err != nil {
		log.Printf("Sources: %v", err)
		return 1
	}

	runner := &refresh.Runner{
		Source:  chain,
		Retry:   retry.Policy{Attempts: cfg.MaxRetries, Delay: cfg.RetryDelay},
		Folder:  cfg.FolderName,
		Verbose: cfg.Verbose,
	}
	if *metricsFile != "" {
		runner.Metrics = metrics.NewRun()
	}
	if *historyPath != "" {
		led, err := history.Open(*historyPath)
		if err != nil {
			log.Printf("History: %v", err)
			return 1
		}
		defer led.Close()
		runner.History = led
	}

	log.Printf("Primary instance: %s", cfg.Endpoint)
	log.Printf("Sources: %s", chain.Name())
	log.Printf("Output folder: %s", cfg.FolderName)

	total := refresh.NewSummary()
	for i, targets := range batches {
		log.Printf("Processing %s", files[i])
		total.Merge(runner.Run(ctx, targets))
	}
	total.Log()

	if runner.Metrics != nil {
		if err := runner.Metrics.WriteTextfile(*metricsFile, time.Now()); err != nil {
			log.Printf("Metrics: %v", err)
		}
	}
	if *failOnError && total.Failed > 0 {
		return 1
	}
	return 0
}

func runProbe(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	urls := fs.String("urls", "", "Comma-separated instances to probe (default: ENDPOINT + STREAM_REFRESH_INSTANCES)")
	timeout := fs.Duration("timeout", 15*time.Second, "Timeout per instance")
	_ = fs.Parse(args)

	instances := cfg.Instances()
	if *urls != "" {
		instances = config.SplitList(*urls)
	}
	client := httpclient.WithTimeout(*timeout)
	results := provider.ProbeAll(ctx, instances, client)
	ok := 0
	for _, r := range results {
		line := fmt.Sprintf("%-40s %-11s", r.URL, r.Status)
		if r.StatusCode != 0 {
			line += fmt.Sprintf(" HTTP %d", r.StatusCode)
		}
		line += fmt.Sprintf(" %dms", r.LatencyMs)
		if r.Version != "" {
			line += " " + r.Version
		}
		fmt.Println(line)
		if r.Status == provider.StatusOK {
			ok++
		}
	}
	if ok == 0 {
		log.Printf("No instance answered OK")
		return 1
	}
	return 0
}

func runEPG(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("epg", flag.ExitOnError)
	src := fs.String("url", cfg.EPGURL, "XMLTV source URL (default: EPG_URL)")
	out := fs.String("out", cfg.EPGOutput, "Rewritten guide path (default: EPG_OUTPUT)")
	mapFile := fs.String("map", cfg.EPGChannelMap, "name => id map file; empty to skip (default: EPG_CHANNEL_MAP)")
	remote := fs.String("dropbox-path", cfg.DropboxPath, "Dropbox destination (default: DROPBOX_PATH)")
	noUpload := fs.Bool("no-upload", false, "Skip the Dropbox upload even when credentials are set")
	state := fs.String("state", "", "Keep ETag/Last-Modified here and skip unchanged guides; empty to always rewrite")
	force := fs.Bool("force", false, "Rewrite and upload even if the guide is unchanged")
	timeout := fs.Duration("timeout", 15*time.Second, "Download timeout")
	_ = fs.Parse(args)

	job := &epg.Job{
		Req:        newGuideRequester(cfg, *timeout),
		SourceURL:  *src,
		Output:     *out,
		MapFile:    *mapFile,
		RemotePath: *remote,
		StatePath:  *state,
		Force:      *force,
	}
	switch {
	case *noUpload:
	case cfg.HasDropbox():
		job.Uploader = &dropbox.Client{
			AppKey:       cfg.DropboxAppKey,
			AppSecret:    cfg.DropboxAppSecret,
			RefreshToken: cfg.DropboxRefreshToken,
		}
	default:
		log.Printf("epg: DROPBOX_REFRESH_TOKEN / DROPBOX_APP_KEY / DROPBOX_APP_SECRET not set; skipping upload")
	}
	if _, err := job.Run(ctx); err != nil {
		log.Printf("EPG failed: %v", err)
		return 1
	}
	return 0
}

func runWorker(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	base := fs.String("base", cfg.PagesURL, "Public base URL of the playlists (default: PAGES_URL)")
	channelsFile := fs.String("channels", "", "JSON channel list [{name,id,logo}] (default: built-in list)")
	playlist := fs.String("playlist", cfg.WorkerPlaylist, "Aggregate playlist output (default: WORKER_PLAYLIST)")
	script := fs.String("script", cfg.WorkerScript, "Worker script to patch (default: WORKER_SCRIPT)")
	name := fs.String("name", cfg.WorkerName, "Worker name (default: WORKER_NAME)")
	group := fs.String("group", "", "group-title for every entry (default: DeaTHLesS)")
	dryRun := fs.Bool("dry-run", false, "Write the playlist and patch the script but do not upload")
	_ = fs.Parse(args)

	if *base == "" {
		log.Printf("worker: PAGES_URL (or -base) is required")
		return 1
	}
	channels := edge.DefaultChannels
	if *channelsFile != "" {
		var err error
		if channels, err = edge.LoadChannels(*channelsFile); err != nil {
			log.Printf("worker: %v", err)
			return 1
		}
	}
	job := &edge.WorkerJob{
		Base:         *base,
		Channels:     channels,
		Playlist:     edge.PlaylistOptions{Group: *group},
		PlaylistPath: *playlist,
		ScriptPath:   *script,
		WorkerName:   *name,
	}
	if !*dryRun {
		if !cfg.HasCloudflare() {
			log.Printf("worker: CF_ACCOUNT_ID and CF_API_TOKEN are required (or use -dry-run)")
			return 1
		}
		job.Deployer = &edge.Deployer{AccountID: cfg.CFAccountID, Token: cfg.CFAPIToken}
	}
	if err := job.Run(ctx); err != nil {
		log.Printf("Worker failed: %v", err)
		return 1
	}
	return 0
}

func runProxy(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("proxy", flag.ExitOnError)
	addr := fs.String("addr", cfg.ProxyAddr, "Listen address (default: STREAM_REFRESH_PROXY_ADDR)")
	base := fs.String("base", "", "Upstream playlist prefix (default: PAGES_URL + /checklist/)")
	cacheTTL := fs.Duration("cache-ttl", 5*time.Second, "Cache rewritten playlists this long; 0 disables")
	_ = fs.Parse(args)

	upstream := *base
	if upstream == "" {
		if cfg.PagesURL == "" {
			log.Printf("proxy: PAGES_URL (or -base) is required")
			return 1
		}
		upstream = strings.TrimSuffix(cfg.PagesURL, "/") + "/checklist/"
	}
	p := edge.NewProxy(upstream, httpclient.WithTimeout(cfg.Timeout), *cacheTTL)
	srv := &http.Server{Addr: *addr, Handler: p.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("proxy: listening on %s, upstream %s", *addr, upstream)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("proxy: %v", err)
		return 1
	}
	return 0
}

func runCheck(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	workerURL := fs.String("url", cfg.WorkerURL, "Deployed proxy base URL (default: WORKER_URL)")
	channel := fs.String("channel", "androstreamlivebs1.m3u8", "Playlist to request under /checklist/")
	timeout := fs.Duration("timeout", 10*time.Second, "Per-request timeout")
	_ = fs.Parse(args)

	rep, err := health.CheckWorker(ctx, httpclient.WithTimeout(*timeout), *workerURL, *channel)
	if err != nil {
		log.Printf("check: %s: %v", *workerURL, err)
		return 1
	}
	log.Printf("check: %s OK: %d bytes, %d proxy links, first chunk %d bytes",
		rep.PlaylistURL, rep.PlaylistBytes, len(rep.ProxyLinks), rep.FirstChunk)
	return 0
}

func runScrape(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	pageURL := fs.String("url", "", "Category page listing the episodes")
	match := fs.String("match", "bolum-izle", "Keep anchors whose href contains this")
	limit := fs.Int("limit", 15, "Episodes to visit")
	host := fs.String("host", "video.twimg.com", "Only capture playlist requests to this host; empty for any")
	out := fs.String("out", "canlidizi_listesi.m3u", "Output playlist")
	wait := fs.Duration("wait", cfg.BrowserWait, "Time each page gets to request its playlist")
	_ = fs.Parse(args)

	if *pageURL == "" {
		log.Printf("scrape: -url is required")
		return 1
	}
	sess, err := browser.NewSession(ctx, browser.Options{ChromePath: cfg.ChromePath, UserAgent: cfg.UserAgent, Wait: *wait})
	if err != nil {
		log.Printf("scrape: %v", err)
		return 1
	}
	defer sess.Close()
	eps, err := browser.Scrape(ctx, sess, browser.ScrapeOptions{
		CategoryURL: *pageURL,
		Substring:   *match,
		Limit:       *limit,
		Host:        *host,
		Output:      *out,
	})
	if err != nil {
		log.Printf("scrape: %v", err)
		return 1
	}
	log.Printf("scrape: wrote %s (%d episodes)", *out, len(eps))
	return 0
}

func runHistory(ctx context.Context, cfg *config.Config, w io.Writer, args []string) int {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	db := fs.String("db", cfg.HistoryPath, "SQLite ledger (default: STREAM_REFRESH_HISTORY)")
	n := fs.Int("n", 10, "Entries per slug")
	_ = fs.Parse(args)

	if *db == "" || fs.NArg() == 0 {
		log.Printf("history: need -db and at least one slug")
		return 1
	}
	if _, err := os.Stat(*db); err != nil {
		log.Printf("history: %v", err)
		return 1
	}
	led, err := history.Open(*db)
	if err != nil {
		log.Printf("history: %v", err)
		return 1
	}
	defer led.Close()
	for _, slug := range fs.Args() {
		streak, err := led.FailureStreak(ctx, slug)
		if err != nil {
			log.Printf("history: %v", err)
			return 1
		}
		entries, err := led.Recent(ctx, slug, *n)
		if err != nil {
			log.Printf("history: %v", err)
			return 1
		}
		fmt.Fprintf(w, "%s: %d entries, failing streak %d\n", slug, len(entries), streak)
		for _, e := range entries {
			result := "ok"
			if !e.OK {
				result = "FAIL " + e.Reason
			}
			fmt.Fprintf(w, "  %s  %-24s %d bytes\n", e.RunAt.Format(time.RFC3339), result, e.Bytes)
		}
	}
	return 0
}
