package publish

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"libconv/internal/config"
	"libconv/internal/ledger"
	"libconv/internal/logging"
	"libconv/internal/procrun"
	"libconv/internal/services"
)

// DefaultFilter selects converted records that are not trailers.
const DefaultFilter = "originalFileBackup IS NOT NULL AND NOT instr(filePath, '-trailer.')"

// Executor runs one external command. procrun.Runner implements it.
type Executor interface {
	Run(ctx context.Context, command string, args []string, onLine func(string)) (procrun.Result, error)
}

// HTTPDoer describes the HTTP client used for the media server refresh.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Mapping pairs a working directory with its production counterpart.
type Mapping struct {
	Source string
	Dest   string
}

// Report summarizes a publish.
type Report struct {
	Directories []Mapping
	// Skipped lists directories outside the configured source prefix.
	Skipped   []string
	Refreshed bool
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithExecutor replaces the process runner.
func WithExecutor(exec Executor) Option {
	return func(p *Publisher) {
		if exec != nil {
			p.exec = exec
		}
	}
}

// WithHTTPClient replaces the media server client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(p *Publisher) {
		if client != nil {
			p.client = client
		}
	}
}

// Publisher syncs converted directories to production.
type Publisher struct {
	cfg    *config.Config
	exec   Executor
	client HTTPDoer
	logger *slog.Logger
}

// New builds a Publisher from cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		cfg:    cfg,
		exec:   procrun.Runner{},
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logging.NewComponentLogger(logger, "publish"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Directories returns the distinct parent directories of records in first-seen
// order, each mapped from sourcePrefix to destPrefix. Directories outside
// sourcePrefix are returned separately.
func Directories(records []ledger.FileRecord, sourcePrefix, destPrefix string) ([]Mapping, []string) {
	sourcePrefix = filepath.Clean(sourcePrefix)
	seen := make(map[string]bool)
	var mappings []Mapping
	var skipped []string
	for _, rec := range records {
		if strings.TrimSpace(rec.Path) == "" {
			continue
		}
		dir := filepath.Dir(filepath.Clean(rec.Path))
		if seen[dir] {
			continue
		}
		seen[dir] = true
		rel, ok := underPrefix(dir, sourcePrefix)
		if !ok {
			skipped = append(skipped, dir)
			continue
		}
		dest := destPrefix
		if rel != "" {
			dest = strings.TrimRight(destPrefix, "/") + "/" + filepath.ToSlash(rel)
		}
		mappings = append(mappings, Mapping{Source: dir, Dest: dest})
	}
	return mappings, skipped
}

func underPrefix(dir, prefix string) (string, bool) {
	if dir == prefix {
		return "", true
	}
	rel, err := filepath.Rel(prefix, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// Publish syncs every directory holding one of records, then refreshes the
// media server. A failed directory does not stop the others; all failures
// are returned together.
func (p *Publisher) Publish(ctx context.Context, records []ledger.FileRecord) (Report, error) {
	var report Report
	if strings.TrimSpace(p.cfg.Publish.SourcePrefix) == "" || strings.TrimSpace(p.cfg.Publish.DestPrefix) == "" {
		return report, services.Wrap(services.ErrConfiguration, "publish", "map directories",
			"publish.source_prefix and publish.dest_prefix must be set", nil)
	}
	mappings, skipped := Directories(records, p.cfg.Publish.SourcePrefix, p.cfg.Publish.DestPrefix)
	report.Skipped = skipped
	for _, dir := range skipped {
		logging.WarnWithContext(p.logger, "directory outside publish source prefix", "publish_directory_skipped",
			logging.String("directory", dir),
			logging.String("source_prefix", p.cfg.Publish.SourcePrefix),
			logging.String(logging.FieldErrorHint, "adjust publish.source_prefix"),
			logging.String(logging.FieldImpact, "files in this directory were not published"),
		)
	}
	if len(mappings) == 0 {
		p.logger.Info("no directories to publish")
		return report, nil
	}

	sink, closeSink, err := p.openLog()
	if err != nil {
		return report, err
	}
	defer closeSink()

	var errs []error
	for i, m := range mappings {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		p.logger.Info("syncing directory",
			logging.Int("index", i+1),
			logging.Int("total", len(mappings)),
			logging.String("source", m.Source),
			logging.String("dest", m.Dest),
		)
		if err := p.sync(ctx, m, sink); err != nil {
			logging.ErrorWithContext(p.logger, "directory sync failed", "publish_sync_failed",
				logging.Error(err),
				logging.String("source", m.Source),
				logging.String(logging.FieldErrorHint, "inspect "+p.cfg.Publish.LogFile),
			)
			errs = append(errs, err)
			continue
		}
		report.Directories = append(report.Directories, m)
	}

	if len(report.Directories) > 0 && p.cfg.MediaServer.Enabled {
		if err := p.RefreshLibrary(ctx); err != nil {
			logging.WarnWithContext(p.logger, "media server refresh failed", "library_refresh_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "trigger a library scan by hand"),
				logging.String(logging.FieldImpact, "new files appear after the next scheduled scan"),
			)
			errs = append(errs, err)
		} else {
			report.Refreshed = true
		}
	}
	return report, errors.Join(errs...)
}

func (p *Publisher) sync(ctx context.Context, m Mapping, sink *bufio.Writer) error {
	if filepath.IsAbs(m.Dest) {
		if err := os.MkdirAll(filepath.Dir(m.Dest), 0o755); err != nil {
			return services.Wrap(services.ErrIO, "publish", "create destination", m.Dest, err)
		}
	}
	vars := strings.NewReplacer("{source_dir}", m.Source, "{dest_dir}", m.Dest)
	args := make([]string, len(p.cfg.Publish.Args))
	for i, arg := range p.cfg.Publish.Args {
		args[i] = vars.Replace(arg)
	}
	_, err := p.exec.Run(ctx, p.cfg.Publish.Command, args, func(line string) {
		if sink != nil {
			_, _ = sink.WriteString(line + "\n")
		}
		p.logger.Debug("sync output", logging.String("line", line))
	})
	if sink != nil {
		_ = sink.Flush()
	}
	if err != nil {
		return fmt.Errorf("sync %s: %w", m.Source, err)
	}
	return nil
}

func (p *Publisher) openLog() (*bufio.Writer, func(), error) {
	path := strings.TrimSpace(p.cfg.Publish.LogFile)
	if path == "" {
		return nil, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, services.Wrap(services.ErrIO, "publish", "create log directory", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrIO, "publish", "open log", path, err)
	}
	w := bufio.NewWriter(f)
	return w, func() {
		_ = w.Flush()
		_ = f.Close()
	}, nil
}

// RefreshLibrary asks the media server to rescan its libraries.
func (p *Publisher) RefreshLibrary(ctx context.Context) error {
	baseURL := strings.TrimRight(strings.TrimSpace(p.cfg.MediaServer.URL), "/")
	apiKey := strings.TrimSpace(p.cfg.MediaServer.APIKey)
	if baseURL == "" || apiKey == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/Library/Refresh", nil)
	if err != nil {
		return fmt.Errorf("build library refresh request: %w", err)
	}
	req.Header.Set("X-Emby-Token", apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("refresh media library: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("library refresh returned %d", resp.StatusCode)
	}
	p.logger.Info("media server library refresh requested", logging.String("url", baseURL))
	return nil
}
