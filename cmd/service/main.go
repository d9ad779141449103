package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/aboudjelida/aimenboudev/internal"
	"github.com/aboudjelida/aimenboudev/internal/config"
	"github.com/aboudjelida/aimenboudev/internal/logging"
	"github.com/aboudjelida/aimenboudev/pkg"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	log.Warnf("---->> running in [%s] environment", *env)

	// secrets come from a .env file in development
	if *env == "dev" || *env == "development" {
		if err := godotenv.Load(); err != nil {
			log.Debugf("no .env file loaded: %s", err)
		}
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    false,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        sentryDSN,
		SentryServerName: "aimenbou-backend",
	})

	log.Debugf("using port: %d", cfg.Port)
	log.Debugf("using server logs path: [%s]", cfg.LogsPath)

	versionInfo, err := tryGetLastCommitHash()
	if err != nil {
		log.Tracef("failed to get last commit hash / version info: %s", err)
	} else {
		log.Tracef("running version: %s", versionInfo)
	}

	spotifyClientID := os.Getenv("AIMENBOU_SPOTIFY_CLIENT_ID")
	if spotifyClientID == "" {
		log.Errorf("spotify client id not set, the music widget will serve the fallback song. use AIMENBOU_SPOTIFY_CLIENT_ID")
	}
	spotifyClientSecret := os.Getenv("AIMENBOU_SPOTIFY_CLIENT_SECRET")
	if spotifyClientSecret == "" {
		log.Errorf("spotify client secret not set. use AIMENBOU_SPOTIFY_CLIENT_SECRET")
	}

	literalEmail := os.Getenv("LITERAL_USER_EMAIL")
	literalPassword := os.Getenv("LITERAL_USER_PASSWORD")
	if literalEmail == "" || literalPassword == "" {
		log.Errorf("literal.club credentials not set, the reading widget will serve the fallback book. use LITERAL_USER_EMAIL and LITERAL_USER_PASSWORD")
	}

	redisPassword := os.Getenv("AIMENBOU_REDIS_PASS")
	if redisPassword == "" {
		log.Errorf("redis password not set. use AIMENBOU_REDIS_PASS")
	}

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		if honeycombApiKey := os.Getenv("HONEYCOMB_API_KEY"); honeycombApiKey == "" {
			log.Warnln("HONEYCOMB_API_KEY env var not set")
		}
	} else {
		log.Debugln("honeycomb tracing disabled")
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:              cfg,
			VersionInfo:         versionInfo,
			RedisPassword:       redisPassword,
			SpotifyClientID:     spotifyClientID,
			SpotifyClientSecret: spotifyClientSecret,
			LiteralEmail:        literalEmail,
			LiteralPassword:     literalPassword,
			TracingEnabled:      tracingEnabled,
		},
	)
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(ctx, cfg.Host, cfg.Port)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, killing everything ...", receivedSig)
	cancel()

	server.GracefulShutdown()
}

// tryGetLastCommitHash will try to get the last commit hash
// assumes that the built main executable is in project root
func tryGetLastCommitHash() (string, error) {
	cmd := exec.Command("/usr/bin/git", "rev-parse", "HEAD")
	stdout, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return pkg.TrimmedOneliner(pkg.BytesToString(stdout)), nil
}
