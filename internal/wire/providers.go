package wire

import (
	"context"
	"fmt"
	"time"

	"roomchat/internal/cache"
	"roomchat/internal/chat"
	"roomchat/internal/chat/handler"
	"roomchat/internal/clock"
	"roomchat/internal/common"
	"roomchat/internal/config"
	"roomchat/internal/dbmongo"
	"roomchat/internal/dbmysql"
	"roomchat/internal/group"
	"roomchat/internal/identity"
	"roomchat/internal/message"
	"roomchat/internal/roster"
	"roomchat/internal/session"
	"roomchat/internal/xmtp"
	"roomchat/internal/xmtp/memnet"

	"github.com/google/wire"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// Application is everything cmd/chat-svc needs to serve or administer rooms.
type Application struct {
	Config   *config.Config
	Log      *zap.SugaredLogger
	Service  *chat.Service
	HTTP     *handler.HTTPHandler
	Stream   *handler.StreamServer
	Tokens   *common.TokenManager
	Roster   *roster.Dispatcher
	Sessions *session.Cache
}

// Stores groups the durable stores of the selected backend.
type Stores struct {
	Groups     group.Store
	Identities identity.Store
}

var StoreSet = wire.NewSet(
	ProvideStores,
	wire.FieldsOf(new(*Stores), "Groups", "Identities"),
	ProvideGroupCache,
)

var ChatSet = wire.NewSet(
	ProvideNetwork,
	ProvideSessionCache,
	ProvideGroupManager,
	ProvideProvisioner,
	ProvideWalletProvider,
	ProvideSystemSigner,
	message.NewProfileCache,
	message.NewFormatter,
	ProvideChatService,
)

var TransportSet = wire.NewSet(
	ProvideRoster,
	ProvideTokenManager,
	ProvideHTTPHandler,
	ProvideStreamServer,
	wire.Bind(new(handler.ChatService), new(*chat.Service)),
	wire.Bind(new(handler.RosterNotifier), new(*roster.Dispatcher)),
)

func ProvideConfig() (*config.Config, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func ProvideLogger(cfg *config.Config) (*zap.SugaredLogger, func()) {
	log := cfg.Logger("chat-svc")
	return log, func() { _ = log.Sync() }
}

func ProvideClock() clock.Clock {
	return clock.NewSystemClock()
}

// ProvideStores connects the durable backend named by cfg.Store.Backend and
// prepares its schema.
func ProvideStores(cfg *config.Config, log *zap.SugaredLogger) (*Stores, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	switch cfg.Store.Backend {
	case config.StoreMySQL:
		db, err := dbmysql.NewMySQL(cfg, log.Named("mysql"))
		if err != nil {
			return nil, nil, err
		}
		if err := dbmysql.Migrate(db); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate mysql: %w", err)
		}
		cleanup := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		log.Infow("durable store ready", "backend", config.StoreMySQL)
		return &Stores{
			Groups:     dbmysql.NewRoomGroupRepository(db),
			Identities: dbmysql.NewIdentityRepository(db),
		}, cleanup, nil
	default:
		mc, err := dbmongo.NewMongoConnection(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := dbmongo.EnsureIndexes(ctx, mc.Database); err != nil {
			_ = mc.Close(context.Background())
			return nil, nil, err
		}
		cleanup := func() {
			ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
			defer cancel()
			if err := mc.Close(ctx); err != nil {
				log.Warnw("failed to close mongo connection", "error", err)
			}
		}
		log.Infow("durable store ready", "backend", config.StoreMongo, "database", cfg.MongoDB.Database)
		return &Stores{
			Groups:     dbmongo.NewRoomGroupStore(mc.Database),
			Identities: dbmongo.NewIdentityStore(mc.Database),
		}, cleanup, nil
	}
}

func ProvideGroupCache(cfg *config.Config, log *zap.SugaredLogger) (group.Cache, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	c, err := cache.NewRedisGroupCache(ctx, cache.NewRedisClient(cfg))
	if err != nil {
		return nil, nil, err
	}
	log.Infow("group cache ready", "addr", cfg.Redis.Addr)
	return c, func() { _ = c.Close() }, nil
}

// ProvideNetwork returns the in-process messaging network. Config.Validate
// only admits the local env, so the bindings in the durable stores can
// outlive the groups they name across a restart; VerifyGroup reports those.
func ProvideNetwork(cfg *config.Config, clk clock.Clock, log *zap.SugaredLogger) xmtp.Network {
	log.Infow("using in-process messaging network", "env", cfg.Network.Env, "propagation_delay", cfg.Network.PropagationDelay)
	return memnet.New(memnet.WithClock(clk), memnet.WithPropagationDelay(cfg.Network.PropagationDelay))
}

func ProvideSessionCache(cfg *config.Config, network xmtp.Network, clk clock.Clock, log *zap.SugaredLogger) (*session.Cache, func()) {
	c := session.NewCache(network, log.Named("session"),
		session.WithTTL(cfg.Chat.SessionTTL),
		session.WithSweepInterval(cfg.Chat.SweepInterval),
		session.WithClock(clk),
		session.WithEnv(cfg.Network.Env),
	)
	c.Start()
	return c, c.Close
}

func ProvideGroupManager(cfg *config.Config, store group.Store, c group.Cache, log *zap.SugaredLogger) *group.Manager {
	return group.NewManager(store, c, group.Config{
		CacheTTL:        cfg.Chat.GroupCacheTTL,
		PropagationWait: cfg.Chat.PropagationWait,
	}, log.Named("group"))
}

func ProvideProvisioner(store identity.Store, log *zap.SugaredLogger) *identity.Provisioner {
	return identity.NewProvisioner(store, log.Named("identity"))
}

func ProvideWalletProvider(cfg *config.Config) identity.WalletProvider {
	return identity.NewDerivedWalletProvider(cfg.System.WalletSecret)
}

// ProvideSystemSigner returns nil when no system identity is configured;
// provisioning and roster additions then fail with SignerUnavailable.
func ProvideSystemSigner(cfg *config.Config, log *zap.SugaredLogger) *identity.SystemSigner {
	if cfg.System.WalletAddress == "" {
		log.Warn("no system identity configured, room groups cannot be provisioned")
		return nil
	}
	signer, err := identity.NewSystemSigner(cfg.System.WalletAddress, cfg.System.SigningSeed)
	if err != nil {
		log.Warnw("system identity unusable", "error", err)
		return nil
	}
	return signer
}

func ProvideChatService(
	cfg *config.Config,
	sessions *session.Cache,
	groups *group.Manager,
	identities *identity.Provisioner,
	wallets identity.WalletProvider,
	system *identity.SystemSigner,
	formatter *message.Formatter,
	clk clock.Clock,
	log *zap.SugaredLogger,
) (*chat.Service, func()) {
	svc := chat.NewService(cfg, sessions, groups, identities, wallets, system, formatter, clk, log.Named("chat"))
	return svc, svc.Close
}

// ProvideRoster starts the participant event workers with the membership
// and profile observers attached.
func ProvideRoster(cfg *config.Config, svc *chat.Service, profiles *message.ProfileCache, log *zap.SugaredLogger) (*roster.Dispatcher, func()) {
	rlog := log.Named("roster")
	d := roster.NewDispatcher(cfg.Roster.Workers, cfg.Roster.ChannelBufferSize, rlog)
	d.Subscribe(roster.NewMembershipObserver(svc, rlog))
	d.Subscribe(roster.NewProfileObserver(svc, profiles))
	return d, d.Shutdown
}

func ProvideTokenManager(cfg *config.Config) *common.TokenManager {
	return common.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
}

func ProvideHTTPHandler(svc handler.ChatService, notifier handler.RosterNotifier, clk clock.Clock, log *zap.SugaredLogger) *handler.HTTPHandler {
	return handler.NewHTTPHandler(svc, notifier, clk, log.Named("http"))
}

func ProvideStreamServer(svc handler.ChatService, log *zap.SugaredLogger) *handler.StreamServer {
	return handler.NewStreamServer(svc, log.Named("stream"))
}
