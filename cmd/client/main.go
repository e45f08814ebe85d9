package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cbodonnell/tsuro/pkg/blobstore"
	"github.com/cbodonnell/tsuro/pkg/client"
	"github.com/cbodonnell/tsuro/pkg/config"
	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/prefs"
	"github.com/cbodonnell/tsuro/pkg/version"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	serverURL := flag.String("server", "", "storage server URL, overrides the config")
	gameLink := flag.String("game", "", "game id or invite link, a new game is created when empty")
	gameName := flag.String("game-name", "", "name shown in the room listing")
	name := flag.String("name", "", "player name to join with, comma separated names join several seats with -hot-seat")
	color := flag.String("color", gametypes.Palette[0].Hex(), "preferred player color, the nearest free one is assigned")
	start := flag.Int("start", 0, "start the game once this many players joined (owner only)")
	bot := flag.Bool("bot", false, "let the client play the local seat")
	hotSeat := flag.Bool("hot-seat", false, "play every seat from this client")
	offline := flag.Bool("offline", false, "keep the game in memory instead of on the server, implies -hot-seat")
	apiKey := flag.String("api-key", os.Getenv("TSURO_API_KEY"), "API key or ID token sent to the server")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting client version %s", version.Get())

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}

	gameID, created := client.ParseGameID(*gameLink)
	if created {
		log.Info("Creating game %s", gameID)
	}
	if *gameName == "" {
		*gameName = gameID
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prefsStore, err := prefs.NewSQLiteStore(ctx, cfg.PrefsPath, cfg.PrefsPrefix)
	if err != nil {
		panic(fmt.Sprintf("Failed to open preferences: %v", err))
	}
	defer prefsStore.Close()

	var gameBlobs, homeBlobs blobstore.Client
	if *offline {
		*hotSeat = true
		gameBlobs = blobstore.NewMemoryStore().Session()
		homeBlobs = gameBlobs
	} else {
		gameBlobs = newBlobs(cfg, *apiKey, cfg.GameDatabase, logger)
		homeBlobs = newBlobs(cfg, *apiKey, cfg.HomeDatabase, logger)
	}

	session := client.NewSession(client.NewSessionOptions{
		GameID:            gameID,
		GameName:          *gameName,
		Blobs:             gameBlobs,
		Home:              homeBlobs,
		Prefs:             prefsStore,
		HotSeat:           *hotSeat,
		Bot:               *bot,
		StepDelay:         cfg.StepDelay(),
		TickInterval:      cfg.TickInterval(),
		ReconnectInterval: cfg.ReconnectInterval(),
		Logger:            logger,
	})

	if err := session.Open(ctx); err != nil {
		panic(fmt.Sprintf("Failed to open game: %v", err))
	}
	if *name != "" {
		names := strings.Split(*name, ",")
		id, err := session.Join(ctx, names[0], *color)
		if err != nil {
			panic(fmt.Sprintf("Failed to join game: %v", err))
		}
		log.Info("Joined game %s as player %d", gameID, id)
		if *hotSeat {
			for _, n := range names[1:] {
				if _, err := session.Engine().Join(ctx, n, *color, false); err != nil {
					panic(fmt.Sprintf("Failed to seat %s: %v", n, err))
				}
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(gctx)
	})
	g.Go(func() error {
		defer stop()
		return watch(gctx, session, *start, *bot)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Client stopped with error: %v", err)
		os.Exit(1)
	}
}

func newBlobs(cfg *config.GameConfig, apiKey, database string, logger *log.Logger) *blobstore.HTTPClient {
	return blobstore.NewHTTPClient(blobstore.NewHTTPClientOptions{
		BaseURL:    cfg.ServerURL,
		Database:   database,
		APIKey:     apiKey,
		MaxRetries: cfg.MaxRetries,
		KeepAlive:  cfg.KeepAlive(),
		Logger:     logger,
	})
}

// watch starts the game once enough players joined and returns when it is
// over. Interactive clients keep running until interrupted.
func watch(ctx context.Context, session *client.Session, start int, exitOnFinish bool) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	started := start <= 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		gameState := session.Engine().State()
		switch gameState.GameStatus {
		case gametypes.GameStatusStarting:
			if started || len(gameState.Players) < start {
				continue
			}
			if err := session.Engine().StartGame(ctx); err != nil {
				log.Warn("Failed to start game: %v", err)
				continue
			}
			started = true
		case gametypes.GameStatusFinished:
			if !exitOnFinish {
				continue
			}
			for _, player := range gameState.Players {
				if player != nil && player.PlayerStatus == gametypes.PlayerStatusWon {
					log.Info("Game over, %s won", player.PlayerName)
				}
			}
			return nil
		}
	}
}
