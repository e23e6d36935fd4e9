package hub

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"

	logrusmw "github.com/chi-middleware/logrus-logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"llmhub/internal/auth"
	"llmhub/internal/config"
	"llmhub/internal/events"
	"llmhub/internal/handlers"
	"llmhub/internal/registry"
	"llmhub/internal/services"
)

var (
	allowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	allowedHeaders = []string{"Content-Type", "Authorization"}
)

// Hub owns one independent set of rooms, event streams and the liveness
// monitor, plus the HTTP surface over them.
type Hub struct {
	cfg *config.Config
	log logrus.FieldLogger

	store   *registry.Registry
	bus     *events.Bus
	rooms   *services.RoomService
	proxy   *services.ProxyService
	monitor *services.LivenessMonitor
	router  chi.Router

	mu     sync.Mutex
	cancel context.CancelFunc
}

func New(cfg *config.Config, log logrus.FieldLogger) *Hub {
	store := registry.New(auth.NewPasswordGuard(cfg.Auth.PasswordCost))
	bus := events.NewBus(cfg.Events.BufferSize, log)
	rooms := services.NewRoomService(store, bus, log)
	proxy := services.NewProxyService(store, services.NewRouter(store), bus, nil, log)

	h := &Hub{
		cfg:     cfg,
		log:     log.WithField("component", "hub"),
		store:   store,
		bus:     bus,
		rooms:   rooms,
		proxy:   proxy,
		monitor: services.NewLivenessMonitor(store, bus, cfg.Liveness.Interval, log),
	}
	h.router = h.routes(log)
	return h
}

func (h *Hub) routes(log logrus.FieldLogger) chi.Router {
	roomHandlers := handlers.NewRoomHandlers(h.rooms, log)
	proxyHandlers := handlers.NewProxyHandlers(h.rooms, h.proxy, log)
	eventHandlers := handlers.NewEventHandlers(h.rooms, h.bus, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logrusmw.Logger("router", log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     h.cfg.Server.CORSOrigins,
		AllowedMethods:     allowedMethods,
		AllowedHeaders:     allowedHeaders,
		OptionsPassthrough: true,
	}))
	r.Use(preflight)

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	r.Get("/health", roomHandlers.Health)
	r.Get("/events", eventHandlers.AllEvents)

	r.Route("/rooms", func(r chi.Router) {
		r.Post("/", roomHandlers.CreateRoom)
		r.Get("/", roomHandlers.ListRooms)

		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", roomHandlers.GetRoom)
			r.Post("/join", roomHandlers.JoinRoom)
			r.Delete("/leave/{id}", roomHandlers.LeaveRoom)
			r.Post("/health", roomHandlers.Heartbeat)
			r.Get("/participants", roomHandlers.GetParticipants)
			r.Get("/v1/models", roomHandlers.ListModels)
			r.Post("/v1/chat/completions", proxyHandlers.ChatCompletions)
			r.Get("/events", eventHandlers.RoomEvents)
			r.Get("/ws", eventHandlers.RoomWebSocket)
		})
	})

	return r
}

// preflight answers every OPTIONS request with 204, adding the permissive
// CORS headers when the cors handler did not set them (no Origin header).
func preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		hdr := w.Header()
		if hdr.Get("Access-Control-Allow-Origin") == "" {
			hdr.Set("Access-Control-Allow-Origin", "*")
		}
		if hdr.Get("Access-Control-Allow-Methods") == "" {
			hdr.Set("Access-Control-Allow-Methods", strings.Join(allowedMethods, ", "))
		}
		if hdr.Get("Access-Control-Allow-Headers") == "" {
			hdr.Set("Access-Control-Allow-Headers", strings.Join(allowedHeaders, ", "))
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *Hub) Handler() http.Handler {
	return h.router
}

// Monitor exposes the liveness monitor, mainly so callers can force a sweep.
func (h *Hub) Monitor() *services.LivenessMonitor {
	return h.monitor
}

// Run listens on the configured address and serves until ctx is done or
// Close is called.
func (h *Hub) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.cfg.Addr())
	if err != nil {
		return errors.Wrapf(err, "listen on %s", h.cfg.Addr())
	}
	return h.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln and the liveness monitor until ctx is
// done, then shuts both down.
func (h *Hub) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()
	defer cancel()

	srv := &http.Server{
		Handler:      h.router,
		ReadTimeout:  h.cfg.Server.ReadTimeout,
		WriteTimeout: h.cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h.log.WithFields(logrus.Fields{
			"addr":                ln.Addr().String(),
			"participant_timeout": h.monitor.Timeout(),
		}).Info("hub listening")
		h.logRoutes()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	g.Go(func() error {
		return h.monitor.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		h.log.Info("hub shutting down")
		// open event streams would otherwise hold Shutdown until the timeout
		h.bus.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})

	return g.Wait()
}

// Close stops a running Serve, clears all rooms and terminates every event
// stream.
func (h *Hub) Close() {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	h.bus.CloseAll()
	h.store.Clear()
}

func (h *Hub) logRoutes() {
	_ = chi.Walk(h.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		h.log.WithFields(logrus.Fields{"method": method, "route": route}).Debug("route registered")
		return nil
	})
}
