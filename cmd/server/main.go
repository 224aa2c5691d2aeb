package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/OWOX/owox-data-marts-sub009/accounts"
	"github.com/OWOX/owox-data-marts-sub009/auth"
	"github.com/OWOX/owox-data-marts-sub009/authstate"
	"github.com/OWOX/owox-data-marts-sub009/authstate/redisrepo"
	"github.com/OWOX/owox-data-marts-sub009/cookies"
	"github.com/OWOX/owox-data-marts-sub009/identity"
	"github.com/OWOX/owox-data-marts-sub009/internal/config"
	"github.com/OWOX/owox-data-marts-sub009/server"
	"github.com/OWOX/owox-data-marts-sub009/sessions"
	"github.com/OWOX/owox-data-marts-sub009/sociallogin"
	"github.com/OWOX/owox-data-marts-sub009/store/sqlstore"
	"github.com/OWOX/owox-data-marts-sub009/token"
	"github.com/OWOX/owox-data-marts-sub009/usercontext"
	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const purgeInterval = 5 * time.Minute

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load .env")
	}
	c := config.New()
	setupLogging(c.GetEnv())

	if err := run(c); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApp(ctx, c)
	if err != nil {
		return err
	}
	defer app.close()

	displayAppname(c.GetAppName())
	go purgeExpiredStates(ctx, app.states)

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

type app struct {
	handler http.Handler
	states  authstate.Repo
	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Close failed")
		}
	}
}

// buildApp wires the stores, the Identity Authority clients and the flow
// orchestrator behind the HTTP server.
func buildApp(ctx context.Context, c config.Config) (*app, error) {
	a := &app{}

	db, err := sqlstore.Open(ctx, sqlstore.Dialect(c.GetDBType()), dsn(c))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	if sqlstore.Dialect(c.GetDBType()) == sqlstore.DialectSQLite {
		if err := db.EnsureUserTables(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	stores := []server.Pinger{db}

	switch c.GetStateStore() {
	case config.StateStoreRedis:
		client := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr(), Password: c.GetRedisPassword()})
		a.closers = append(a.closers, client.Close)
		repo := redisrepo.New(client)
		if err := repo.Ping(ctx); err != nil {
			a.close()
			return nil, err
		}
		a.states = repo
		stores = append(stores, repo)
	case config.StateStoreMem:
		log.Warn().Msg("Auth state kept in memory, do not run more than one instance")
		a.states = authstate.NewInMemoryRepo(time.Now)
	default:
		a.states = db
	}

	sealer, err := cookies.NewSealer(c.GetCookieSecret())
	if err != nil {
		a.close()
		return nil, err
	}
	if c.GetCookieSecret() == "" {
		log.Warn().Msg("IDP_OWOX_COOKIE_SECRET is not set, sealed cookies will not survive a restart")
	}
	jar := cookies.NewJar(c.GetSecureCookies(), sealer)

	provider, err := sociallogin.NewHTTPProvider(c, server.RouteSocialLogin)
	if err != nil {
		a.close()
		return nil, err
	}

	resolver := accounts.NewResolver(db, db)
	tokens := token.NewFacade(a.states, identity.NewClient(c), token.NewVerifier(c), jar)
	flows, err := auth.NewFlowOrchestrator(auth.Services{
		States:      a.states,
		Tokens:      tokens,
		UserContext: usercontext.NewService(tokens, db, resolver),
		Sessions:    sessions.NewBridge(provider, db, resolver),
		Completion:  identity.NewCompletionClient(c),
		AuthInfo:    usercontext.NewAuthInfoPersister(db),
		Cookies:     jar,
	}, c)
	if err != nil {
		a.close()
		return nil, err
	}

	a.handler, err = server.New(c, server.Dependencies{
		Flows:    flows,
		Tokens:   tokens,
		Provider: provider,
		Cookies:  jar,
		Stores:   stores,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func dsn(c config.Config) string {
	if sqlstore.Dialect(c.GetDBType()) == sqlstore.DialectPostgres {
		return c.GetPostgresDSN()
	}
	return c.GetSQLitePath()
}

func purgeExpiredStates(ctx context.Context, states authstate.Repo) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := states.PurgeExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to purge expired auth states")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("Purged expired auth states")
			}
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
