package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/tablebank/internal/api"
	"github.com/mcoot/tablebank/internal/config"
	"github.com/mcoot/tablebank/internal/dependencies/clock"
	"github.com/mcoot/tablebank/internal/dependencies/idgen"
	"github.com/mcoot/tablebank/internal/dependencies/random"
	"github.com/mcoot/tablebank/internal/dispatch"
	"github.com/mcoot/tablebank/internal/model"
	"github.com/mcoot/tablebank/internal/services/codegen"
	"github.com/mcoot/tablebank/internal/services/identity"
	"github.com/mcoot/tablebank/internal/services/ledger"
	"github.com/mcoot/tablebank/internal/services/lobby"
	"github.com/mcoot/tablebank/internal/storage"
	"github.com/mcoot/tablebank/internal/storage/memory"
	redisstorage "github.com/mcoot/tablebank/internal/storage/redis"
	"github.com/mcoot/tablebank/internal/web/sse"
	"github.com/mcoot/tablebank/internal/web/ws"
)

// Storage type constants
const (
	StorageTypeMemory = config.StorageTypeMemory
	StorageTypeRedis  = config.StorageTypeRedis
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random
	IDs    idgen.Generator

	// Services
	Codes            *codegen.Generator
	Identity         *identity.Service
	LedgerController *ledger.Controller
	LobbyController  *lobby.Controller
	Dispatcher       *dispatch.Dispatcher
	HubManager       *sse.HubManager
	Broadcaster      *sse.Broadcaster

	Logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// Options tunes the services; zero fields take their defaults
	Options Options
}

// Options holds service settings
type Options struct {
	CodeLength int
	Settings   *model.Settings
	UndoMode   ledger.UndoMode
	TokenCost  int
}

// FromConfig converts loaded server configuration into a factory Config
func FromConfig(cfg *config.Config, logger *slog.Logger) Config {
	settings := cfg.Settings()
	redisCfg := redisstorage.DefaultConfig()
	redisCfg.URL = cfg.Storage.Redis.URL
	redisCfg.PoolSize = cfg.Storage.Redis.PoolSize
	redisCfg.LobbyTTL = cfg.Storage.Redis.TTL
	redisCfg.SessionTTL = cfg.Storage.Redis.TTL

	return Config{
		Logger:      logger,
		StorageType: cfg.Storage.Type,
		RedisConfig: &redisCfg,
		Options: Options{
			CodeLength: cfg.Lobby.CodeLength,
			Settings:   &settings,
			UndoMode:   ledger.UndoMode(cfg.Ledger.UndoMode),
			TokenCost:  cfg.Identity.TokenCost,
		},
	}
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	return newWithDependencies(store, clock.New(), random.New(), idgen.New(), cfg.Options, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	ids idgen.Generator,
	opts Options,
	logger *slog.Logger,
) *App {
	if opts.CodeLength == 0 {
		opts.CodeLength = codegen.DefaultLength
	}
	settings := model.DefaultSettings()
	if opts.Settings != nil {
		settings = opts.Settings.Clone()
	}
	if opts.UndoMode == "" {
		opts.UndoMode = ledger.UndoModeInverse
	}

	codes := codegen.New(store, rnd, opts.CodeLength, logger)
	ident := identity.New(rnd, opts.TokenCost)
	ledgerController := ledger.NewController(store, clk, opts.UndoMode, logger)
	lobbyController := lobby.NewController(store, ledgerController, codes, ident, ids, clk, settings, logger)
	hubManager := sse.NewHubManager(logger)
	broadcaster := sse.NewBroadcaster(hubManager, logger)
	dispatcher := dispatch.New(lobbyController, ledgerController, ids, broadcaster, logger)

	return &App{
		Storage:          store,
		Clock:            clk,
		Random:           rnd,
		IDs:              ids,
		Codes:            codes,
		Identity:         ident,
		LedgerController: ledgerController,
		LobbyController:  lobbyController,
		Dispatcher:       dispatcher,
		HubManager:       hubManager,
		Broadcaster:      broadcaster,
		Logger:           logger,
	}
}

// Close releases storage resources
func (a *App) Close() error {
	if closer, ok := a.Storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Router builds the HTTP handler for the app. ctx bounds WebSocket connections.
func (a *App) Router(ctx context.Context) http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:      a.Logger,
		Queries:     a.Dispatcher,
		Codes:       a.Codes,
		HubManager:  a.HubManager,
		ObserverIDs: idgen.New(),
		WebSocket:   ws.NewHandler(ctx, a.Dispatcher, a.Logger),
	})
}
