package app

import (
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/JongoDB/arc4de/internal/api"
	"github.com/JongoDB/arc4de/internal/config"
	"github.com/JongoDB/arc4de/internal/health"
	"github.com/JongoDB/arc4de/internal/jwtauth"
	"github.com/JongoDB/arc4de/internal/middleware"
	"github.com/JongoDB/arc4de/internal/plugins"
	"github.com/JongoDB/arc4de/internal/termws"
	"github.com/JongoDB/arc4de/internal/tmuxctl"

	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HandlerFlag is a bit mask of handlers that must be enabled in mux.
type HandlerFlag int

const (
	// HandlerTerminal enables the terminal WebSocket handler.
	HandlerTerminal HandlerFlag = 1 << iota
	// HandlerAPI enables REST API handlers.
	HandlerAPI
	// HandlerDebug enables debug handlers.
	HandlerDebug
	// HandlerPrometheus enables Prometheus handler.
	HandlerPrometheus
	// HandlerHealth enables Health check endpoint.
	HandlerHealth
)

var handlerText = map[HandlerFlag]string{
	HandlerTerminal:   "terminal",
	HandlerAPI:        "api",
	HandlerDebug:      "debug",
	HandlerPrometheus: "prometheus",
	HandlerHealth:     "health",
}

func (flags HandlerFlag) String() string {
	flagsOrdered := []HandlerFlag{HandlerTerminal, HandlerAPI, HandlerPrometheus, HandlerDebug, HandlerHealth}
	var endpoints []string
	for _, flag := range flagsOrdered {
		text, ok := handlerText[flag]
		if !ok {
			continue
		}
		if flags&flag != 0 {
			endpoints = append(endpoints, text)
		}
	}
	return strings.Join(endpoints, ", ")
}

// Mux returns a mux including the set of handlers enabled by flags.
func Mux(
	cfg config.Config, issuer *jwtauth.Issuer, sessions *tmuxctl.Manager,
	tunnels api.TunnelManager, plugs *plugins.Manager, flags HandlerFlag,
) *http.ServeMux {
	mux := http.NewServeMux()

	var commonMiddlewares []alice.Constructor

	useLoggingMW := zerolog.GlobalLevel() <= zerolog.DebugLevel
	if useLoggingMW {
		commonMiddlewares = append(commonMiddlewares, middleware.LogRequest)
	}

	basicMiddlewares := append([]alice.Constructor{}, commonMiddlewares...)
	basicChain := alice.New(basicMiddlewares...)

	if flags&HandlerDebug != 0 {
		mux.Handle("/debug/pprof/", basicChain.Then(http.HandlerFunc(pprof.Index)))
		mux.Handle("/debug/pprof/cmdline", basicChain.Then(http.HandlerFunc(pprof.Cmdline)))
		mux.Handle("/debug/pprof/profile", basicChain.Then(http.HandlerFunc(pprof.Profile)))
		mux.Handle("/debug/pprof/symbol", basicChain.Then(http.HandlerFunc(pprof.Symbol)))
		mux.Handle("/debug/pprof/trace", basicChain.Then(http.HandlerFunc(pprof.Trace)))
	}

	connMiddlewares := append([]alice.Constructor{}, commonMiddlewares...)
	connMiddlewares = append(connMiddlewares, middleware.NewCORS(getCheckOrigin(cfg)).Middleware)
	connChain := alice.New(connMiddlewares...)

	if flags&HandlerTerminal != 0 {
		handler := termws.NewHandler(
			terminalHandlerConfig(cfg),
			terminalTokenVerifier(issuer),
			terminalAttacher(cfg, sessions),
			getCheckOrigin(cfg),
		)
		mux.Handle(termws.EndpointPath, connChain.Then(handler))
	}

	if flags&HandlerAPI != 0 {
		apiHandler := api.NewHandler(api.Config{
			Password:         cfg.Auth.Password,
			MaxLoginAttempts: cfg.Auth.MaxLoginAttempts,
			LoginWindow:      cfg.Auth.LoginWindow,
			LoginLockout:     cfg.Auth.LoginLockout,
		}, issuer, sessions, tunnels, plugs)
		mux.Handle("/api/", connChain.Then(apiHandler))
	}

	if flags&HandlerPrometheus != 0 {
		mux.Handle("/metrics", basicChain.Then(promhttp.Handler()))
	}

	if flags&HandlerHealth != 0 {
		mux.Handle("/health", basicChain.Then(health.NewHandler(health.Config{})))
	}

	return mux
}

func terminalHandlerConfig(cfg config.Config) termws.Config {
	return termws.Config{
		AuthTimeout:      cfg.WebSocket.AuthTimeout,
		WriteTimeout:     cfg.WebSocket.WriteTimeout,
		MessageSizeLimit: cfg.WebSocket.MessageSizeLimit,
	}
}

func terminalTokenVerifier(issuer *jwtauth.Issuer) termws.TokenVerifier {
	return func(token string) error {
		_, err := issuer.VerifyAccess(token)
		return err
	}
}

// terminalAttacher binds authenticated terminal connections to tmux
// sessions. An empty session id creates a fresh session first.
func terminalAttacher(cfg config.Config, sessions *tmuxctl.Manager) termws.Attacher {
	return func(sessionID string, cols, rows int) (termws.Session, error) {
		if sessionID == "" {
			info, err := sessions.Create("")
			if err != nil {
				return nil, err
			}
			sessionID = info.SessionID
		}
		if cols <= 0 || rows <= 0 {
			cols, rows = cfg.Session.Width, cfg.Session.Height
		}
		attachment, err := sessions.Attach(sessionID, cols, rows)
		if err != nil {
			return nil, err
		}
		return attachment, nil
	}
}
