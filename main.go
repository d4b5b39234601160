// main.go
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ShomaShirai/Ito-game/config"
	"github.com/ShomaShirai/Ito-game/feed"
	"github.com/ShomaShirai/Ito-game/game"
	"github.com/ShomaShirai/Ito-game/logger"
	"github.com/ShomaShirai/Ito-game/monitor"
	"github.com/ShomaShirai/Ito-game/persistence"
	"github.com/ShomaShirai/Ito-game/room"
	"github.com/ShomaShirai/Ito-game/rpc"
	"github.com/ShomaShirai/Ito-game/server"
	"github.com/ShomaShirai/Ito-game/services"
)

func buildStore(cfg *config.Config) (persistence.Store, error) {
	switch cfg.Database.Backend {
	case "memory":
		return persistence.NewMemory(), nil
	case "postgres":
		pg := cfg.Database.Postgres
		return persistence.NewGormStore(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
	}
}

func buildTransport(cfg *config.Config) (feed.Transport, error) {
	switch cfg.Feed.Backend {
	case "memory":
		return feed.NewBus(), nil
	case "nats":
		return feed.NewNATSTransport(cfg.Feed.NATSURL)
	case "postgres":
		pg := cfg.Database.Postgres
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		return feed.NewPGTransport(dsn)
	default:
		return nil, fmt.Errorf("unknown feed backend %q", cfg.Feed.Backend)
	}
}

func main() {
	var (
		configPath = flag.String("config", ".", "directory containing config.yaml")
		dev        = flag.Bool("dev", false, "development logging")
	)
	flag.Parse()

	// .env は無ければ無視する
	_ = godotenv.Load()

	if *dev {
		logger.InitDevelopment()
	} else {
		logger.Init()
	}
	defer logger.Log.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Log.Fatalf("load config: %v", err)
	}

	backend, err := buildStore(cfg)
	if err != nil {
		logger.Log.Fatalf("open store: %v", err)
	}

	transport, err := buildTransport(cfg)
	if err != nil {
		logger.Log.Fatalf("open feed transport: %v", err)
	}

	// すべての書き込みは feed へも流す
	store := persistence.NewEvented(backend, transport)

	registry := room.NewRegistry(store, cfg.Game.RoomCodeLength, cfg.Game.InitialLife, cfg.Game.MaxRounds)
	engine := game.NewEngine(store, cfg.Game.NumberMin, cfg.Game.NumberMax, cfg.Game.MinPlayers)
	lives := services.NewLifeService(store)

	monitor.StartServer(cfg.Server.MetricsAddress)

	stats := rpc.NewStatsService(store, lives)
	if err := rpc.StartServer(cfg.Server.RPCAddress, stats); err != nil {
		logger.Log.Fatalf("start rpc server: %v", err)
	}

	srv := server.NewGameServer(store, transport, registry, engine, lives)
	srv.SetPublicBaseURL(cfg.Server.PublicBaseURL)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddress,
		Handler: srv.Router(),
	}

	go func() {
		logger.Log.Infof("game server listening on %s", cfg.Server.HTTPAddress)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalf("http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down")
	httpServer.Close()
	transport.Close()
	if err := store.Close(); err != nil {
		logger.Log.Errorf("close store: %v", err)
	}
}
