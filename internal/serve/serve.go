package serve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/m1k1o/go-portal/internal/auth"
	"github.com/m1k1o/go-portal/internal/cache"
	"github.com/m1k1o/go-portal/internal/config"
	"github.com/m1k1o/go-portal/internal/server"
	"github.com/m1k1o/go-portal/internal/store"
	"github.com/m1k1o/go-portal/modules"
	authModule "github.com/m1k1o/go-portal/modules/auth"
	"github.com/m1k1o/go-portal/modules/hlsproxy"
	"github.com/m1k1o/go-portal/modules/player"
	"github.com/m1k1o/go-portal/modules/players"
	"github.com/m1k1o/go-portal/pkg/hlscapture"
)

type Config struct {
	Server   config.Server
	Database config.Database
	Auth     config.Auth
	Capture  config.Capture
	Cache    config.Cache
	HlsProxy config.HlsProxy
}

// Configs lists config groups registered by serve command.
func (c *Config) Configs() []config.Config {
	return []config.Config{
		&c.Server,
		&c.Auth,
		&c.Capture,
		&c.Cache,
		&c.HlsProxy,
	}
}

func NewCommand() *Main {
	return &Main{
		Config: &Config{},
	}
}

type Main struct {
	Config *Config

	logger   zerolog.Logger
	server   *server.ServerManagerCtx
	store    *store.StoreCtx
	cache    *cache.CacheCtx
	auth     *auth.ManagerCtx
	players  *players.ModuleCtx
	authApi  *authModule.ModuleCtx
	hlsProxy *hlsproxy.ModuleCtx
	player   *player.ModuleCtx

	// mounted modules, in order of registration
	modules []modules.Module
}

func (main *Main) handle(pattern string, module modules.Module) {
	main.server.Handle(pattern, module)
	main.modules = append(main.modules, module)
}

func (main *Main) Preflight() {
	main.logger = log.With().Str("service", "main").Logger()
}

func (main *Main) start() error {
	config := main.Config

	var err error
	main.store, err = store.Open(config.Database.Path)
	if err != nil {
		return fmt.Errorf("unable to open database: %w", err)
	}
	main.logger.Info().Str("path", config.Database.Path).Msg("database opened")

	main.cache = cache.New(config.Cache.CleanupPeriod)

	main.auth = auth.New(&auth.Config{
		Secret:       config.Auth.Secret,
		Admin:        config.Auth.Admin,
		Password:     config.Auth.Password,
		PasswordHash: config.Auth.PasswordHash,
		TokenTTL:     config.Auth.TokenTTL,
		SecureCookie: config.Auth.SecureCookie,
	})

	main.server = server.New(&config.Server)

	capture := hlscapture.New(&hlscapture.Config{
		FFmpegBinary:   config.Capture.FFmpegBinary,
		FFprobeBinary:  config.Capture.FFprobeBinary,
		LoadTimeout:    config.Capture.LoadTimeout,
		ProbeTimeout:   config.Capture.ProbeTimeout,
		MaxConcurrency: config.Capture.MaxConcurrency,
		PreviewTTL:     config.Capture.PreviewTTL,
	})

	main.players = players.New("/api", &players.Config{
		ListTTL:    config.Cache.ListTTL,
		PlayerTTL:  config.Cache.PlayerTTL,
		FrameCount: config.Capture.FrameCount,
	}, main.store, main.cache, main.auth, capture)
	main.logger.Info().Msg("players api registered")

	main.authApi = authModule.New("/api/auth", &authModule.Config{
		LoginRate: config.Auth.LoginRate,
	}, main.auth)
	main.logger.Info().Msg("auth api registered")

	// more specific pattern wins
	main.handle("/api/auth/*", main.authApi)
	main.handle("/api/*", main.players)

	if config.HlsProxy.Enabled {
		main.hlsProxy = hlsproxy.New("/hlsproxy/", &hlsproxy.Config{
			SegmentExpiration:  config.HlsProxy.SegmentExpiration,
			PlaylistExpiration: config.HlsProxy.PlaylistExpiration,
		}, main.resolveSource)
		main.handle("/hlsproxy/*", main.hlsProxy)
		main.logger.Info().Msg("hls proxy is active")
	}

	main.player = player.New("/player/", &player.Config{}, main.resolvePage)
	main.handle("/player/*", main.player)
	main.logger.Info().Msg("player registered")

	main.server.Start()
	main.logger.Info().Msgf("serving players from basedir %s", config.Server.BaseDir)
	return nil
}

func (main *Main) playerByPID(ctx context.Context, pId string) (*store.Player, error) {
	return cache.Fetch(main.cache, cache.KeyPlayer(pId), main.Config.Cache.PlayerTTL, func() (*store.Player, error) {
		return main.store.GetByPID(ctx, pId)
	})
}

func (main *Main) resolveSource(ctx context.Context, pId string) (string, error) {
	p, err := main.playerByPID(ctx, pId)
	if errors.Is(err, store.ErrNotFound) {
		return "", hlsproxy.ErrSourceNotFound
	}
	if err != nil {
		return "", err
	}
	return p.URL, nil
}

func (main *Main) resolvePage(ctx context.Context, pId string) (*player.Page, error) {
	p, err := main.playerByPID(ctx, pId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, player.ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}

	page := &player.Page{
		Name:         p.Name,
		Description:  p.Description,
		Announcement: p.Announcement,
		Source:       p.URL,
	}

	if p.HasCover {
		page.Poster = fmt.Sprintf("/api/players/%d/cover", p.ID)
	}

	if main.hlsProxy != nil {
		source, err := main.hlsProxy.EntryPath(p.PID, p.URL)
		if err != nil {
			main.logger.Warn().Err(err).Str("pId", p.PID).Msg("player source cannot be proxied, using it directly")
		} else {
			page.Source = source
		}
	}

	return page, nil
}

func (main *Main) shutdown() {
	err := main.server.Shutdown()
	main.logger.Err(err).Msg("http manager shutdown")

	for i := len(main.modules) - 1; i >= 0; i-- {
		main.modules[i].Shutdown()
	}
	main.logger.Info().Int("modules", len(main.modules)).Msg("modules shutdown")

	if main.cache != nil {
		main.cache.Clear()
		main.cache.Shutdown()
		main.logger.Info().Msg("cache shutdown")
	}

	if main.store != nil {
		err := main.store.Close()
		main.logger.Err(err).Msg("database closed")
	}
}

func (main *Main) Run(cmd *cobra.Command, args []string) {
	main.logger.Info().Msg("starting main server")
	if err := main.start(); err != nil {
		main.logger.Panic().Err(err).Msg("unable to start main server")
	}
	main.logger.Info().Msg("main ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit

	main.logger.Warn().Msgf("received %s, attempting graceful shutdown", sig)
	main.shutdown()
	main.logger.Info().Msg("shutdown complete")
}
