package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pthm/hxbus"
	hxbuschi "github.com/pthm/hxbus/adapters/chi"
	"github.com/pthm/hxbus/internal/config"
	"github.com/pthm/hxbus/internal/metrics"
	"github.com/pthm/hxbus/lib/expr"
	"github.com/pthm/hxbus/lib/push"
	"github.com/pthm/hxbus/lib/runtime"
)

const htmxScript = `<script src="https://unpkg.com/htmx.org@2.0.4"></script>`

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the page declarations over HTTP",
	Long: `Serves every declaration matching server.pages under --dir. A page named
"orders" is served at /orders; "index" is served at /.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("watch") {
			cfg.Server.Watch, _ = cmd.Flags().GetBool("watch")
		}
		dir, _ := cmd.Flags().GetString("dir")
		return runServe(cmd.Context(), cfg, dir)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().Bool("watch", false, "Reload declarations when they change")
}

func newBroker(cfg config.PushConfig) (push.Broker, error) {
	switch cfg.Backend {
	case "memory":
		return push.NewMemory(), nil
	case "redis":
		return push.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, push.WithChannelPrefix(cfg.Prefix)), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown push backend %q", cfg.Backend)
	}
}

// server routes requests to the site's pages.
type server struct {
	site    *site
	mounter *hxbuschi.Mounter
	eval    func(*http.Request) hxbus.Evaluator
	push    bool
	logger  zerolog.Logger
}

func newHandler(s *site, cfg config.Config, broker push.Broker, logger zerolog.Logger) http.Handler {
	engine := expr.New()
	eval := engine.ForRequest(nil)

	opts := []hxbuschi.Option{
		hxbuschi.WithEvaluator(eval),
		hxbuschi.WithLogger(logger),
	}
	if cfg.State.Key != "" {
		opts = append(opts, hxbuschi.WithKey([]byte(cfg.State.Key)))
		if cfg.State.Sensitive {
			opts = append(opts, hxbuschi.WithSensitiveState())
		}
	} else {
		opts = append(opts, hxbuschi.WithoutState())
	}
	if broker != nil {
		opts = append(opts, hxbuschi.WithBroker(broker))
	}
	m := hxbuschi.New(opts...)

	srv := &server{site: s, mounter: m, eval: eval, push: broker != nil, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	m.MountRuntime(r)
	r.Handle("/metrics", metrics.Handler())
	r.Handle("/*", srv)
	return r
}

func pageName(path string) string {
	name := strings.Trim(path, "/")
	if name == "" {
		return "index"
	}
	return name
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.site.get(pageName(r.URL.Path))
	if !ok {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.mounter.Handler(doc.Build).ServeHTTP(w, r)
		return
	}

	page, err := doc.NewPage(s.mounter.PageOptions()...)
	if err != nil {
		s.logger.Error().Err(err).Str("page", doc.Name).Msg("compose page")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	hxbuschi.Render(w, r, s.layout(doc.Name, page, s.eval(r)))
}

// layout wraps a page in a document loading htmx and the runtime, and
// subscribes to server pushes for every group observed on the page.
func (s *server) layout(title string, page *hxbus.Page, eval hxbus.Evaluator) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>"+
			templ.EscapeString(title)+"</title>"+htmxScript); err != nil {
			return err
		}
		if err := s.mounter.Script().Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "</head><body>"); err != nil {
			return err
		}
		if err := page.Render(ctx, w, eval); err != nil {
			return err
		}
		if s.push {
			for _, g := range observedGroups(page) {
				if err := runtime.Connect(g, push.WebSocketPath).Render(ctx, w); err != nil {
					return err
				}
			}
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

func observedGroups(page *hxbus.Page) []string {
	seen := map[string]bool{}
	var out []string
	for _, o := range page.Observers() {
		if g := o.Group(); !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out
}

func runServe(ctx context.Context, cfg config.Config, dir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cfg)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	s, err := loadSite(dir, cfg.Server.Pages, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Watch {
		if err := s.watch(ctx); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	broker, err := newBroker(cfg.Push)
	if err != nil {
		return err
	}
	if broker != nil {
		defer broker.Close()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newHandler(s, cfg, broker, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Strs("pages", s.names()).Msg("starting server")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	}
}
