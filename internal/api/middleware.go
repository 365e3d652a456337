package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/telemetry"
)

// Middleware — функция-обёртка для http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain применяет middleware в порядке слева направо.
// Chain(m1, m2)(handler) = m1(m2(handler))
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Logging логирует HTTP запросы и кладёт logger в контекст запроса.
func Logging(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := wrapWriter(w)
			r = r.WithContext(telemetry.WithLogger(r.Context(), logger.With("path", r.URL.Path)))

			next.ServeHTTP(rw, r)

			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

// Metrics считает запросы по шаблону маршрута.
func Metrics(m *telemetry.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrapWriter(w)

			next.ServeHTTP(rw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(r.Method, route, rw.status, time.Since(start))
		})
	}
}

// Recovery восстанавливается после паники.
func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"error", err,
						"stack", string(debug.Stack()),
						"path", r.URL.Path,
					)
					InternalError(w, logger, nil)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// AuthConfig — настройки проверки доступа.
type AuthConfig struct {
	Token   string // ENV_TOKEN, значение заголовка X-Token
	Agent   string // ENV_AGENT, ожидаемый User-Agent запросов без Origin
	Hosts   string // ENV_HOSTS
	Origins string // ENV_ORIGINS
	Referer string // ENV_REFERER
	// Disabled отключает проверку (development).
	Disabled bool
}

// restricted — доступ ограничен конкретными хостами или origin.
func (c AuthConfig) restricted() bool {
	return c.Origins != "*" || c.Hosts != "*"
}

// Auth проверяет X-Token и, если заданы, Referer, Host и Origin.
// Любое несовпадение даёт 403.
func Auth(cfg AuthConfig, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if cfg.Disabled {
			return next
		}
		// Токен — UUID: регистр и фигурные скобки не важны.
		token, tokenErr := uuid.Parse(cfg.Token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.restricted() && !checkOrigin(cfg, r, logger) {
				Forbidden(w)
				return
			}

			got, err := uuid.Parse(r.Header.Get("X-Token"))
			if err != nil || tokenErr != nil || got != token {
				logger.Warn("invalid token provided", "host", r.Host, "origin", r.Header.Get("Origin"))
				Forbidden(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func checkOrigin(cfg AuthConfig, r *http.Request, logger *slog.Logger) bool {
	referer := r.Header.Get("Referer")
	if referer == "" || r.Host == "" {
		logger.Warn("either Referer or Host was not set", "host", r.Host)
		return false
	}
	if referer != cfg.Referer {
		logger.Warn("referer attempted access using a valid token", "referer", referer)
		return false
	}
	if r.Host != cfg.Hosts {
		logger.Warn("host attempted access using a valid token", "host", r.Host)
		return false
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		if ua := r.UserAgent(); ua != cfg.Agent {
			logger.Warn("origin was not set",
				"host", r.Host,
				"client_ip", r.Header.Get("True-Client-IP"),
				"user_agent", ua,
			)
		}
		return true
	}
	if origin != cfg.Origins {
		logger.Warn("origin attempted access using a valid token", "origin", origin)
		return false
	}
	return true
}

// corsMethods — методы, разрешённые для preflight.
const corsMethods = "DELETE, GET, HEAD, OPTIONS, PATCH, POST, PUT"

// CORS разрешает запросы с origin (или любого при "*") с credentials
// и открывает клиенту заголовок X-Total-Count.
func CORS(origins string) Middleware {
	allowed := func(origin string) bool {
		return origins == "*" || origin == origins
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !allowed(origin) {
				if preflight {
					http.Error(w, "Disallowed CORS origin", http.StatusBadRequest)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")

			if preflight {
				h.Set("Access-Control-Allow-Methods", corsMethods)
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					h.Set("Access-Control-Allow-Headers", reqHeaders)
				}
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusOK)
				return
			}

			h.Set("Access-Control-Expose-Headers", HeaderTotalCount)
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter — обёртка для захвата статуса ответа.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(status int) {
	if !rw.wroteHeader {
		rw.status = status
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
