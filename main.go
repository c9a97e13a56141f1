package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/metcalfc/tilawa/internal/app"
	"github.com/metcalfc/tilawa/internal/audio"
	"github.com/metcalfc/tilawa/internal/config"
	"github.com/metcalfc/tilawa/internal/logging"
	"github.com/metcalfc/tilawa/internal/player"
	"github.com/metcalfc/tilawa/internal/quran"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	appTitle     = "القرآن الكريم"
	bismillah    = "بِسْمِ ٱللَّهِ ٱلرَّحْمَٰنِ ٱلرَّحِيمِ"
	tickInterval = 500 * time.Millisecond
	seekStep     = 5 * time.Second
)

// flagKeys maps CLI flags to config keys.
var flagKeys = map[string]string{
	"api":       "api.base_url",
	"reciter":   "reciters.default",
	"player":    "player.command",
	"log-file":  "log.file",
	"log-level": "log.level",
}

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("%s %s (commit: %s, built: %s)\n", c.App.Name, version, commit, date)
	}

	cliApp := &cli.App{
		Name:    "tilawa",
		Usage:   "Read the Quran and listen to verse-by-verse recitation.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file (default: $XDG_CONFIG_HOME/tilawa/config.yaml).",
			},
			&cli.StringFlag{
				Name:  "api",
				Usage: "Content API base URL.",
			},
			&cli.StringFlag{
				Name:    "reciter",
				Aliases: []string{"r"},
				Usage:   "Reciter identifier selected at startup (e.g. ar.minshawi).",
			},
			&cli.StringFlag{
				Name:    "player",
				Aliases: []string{"p"},
				Usage:   "Audio player: auto, mpv, ffplay, none, or a path to an executable.",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Log file path.",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error.",
			},
		},
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"), overrides(c))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	log, closer, err := logging.Open(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closer.Close()

	log.Info("starting", zap.String("version", version), zap.String("api", cfg.API.BaseURL))

	handle := newHandle(cfg.Player, log)
	defer handle.Close()

	client := quran.NewClient(quran.Options{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent + "/" + version,
		Allowed:   cfg.Reciters.Allowed,
	})
	a := app.New(client, player.New(handle, log), cfg.Reciters.Default, log)

	if err := runFrontend(c.Context, a, handle, log); err != nil {
		log.Error("frontend exited", zap.Error(err))
		return err
	}
	return nil
}

// overrides collects explicitly set flags as config keys.
func overrides(c *cli.Context) map[string]any {
	out := make(map[string]any)
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	return out
}

// newHandle builds the audio handle. Without a usable player the reader
// still works; play commands fail and are logged.
func newHandle(cfg config.Player, log *zap.Logger) audio.Handle {
	if cfg.Command == "none" {
		return audio.NewNull()
	}
	p, err := audio.NewExecPlayer(cfg.Command, cfg.Args)
	if err != nil {
		if errors.Is(err, audio.ErrNoPlayer) {
			log.Warn("no audio player found, playback disabled")
		} else {
			log.Error("audio player unavailable, playback disabled", zap.String("command", cfg.Command), zap.Error(err))
		}
		return audio.NewNull()
	}
	log.Info("audio player", zap.String("command", p.Command()))
	return p
}
