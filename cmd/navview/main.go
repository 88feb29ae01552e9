package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/milk9111/gravnav/debugdraw"
	"github.com/milk9111/gravnav/movement"
	"github.com/milk9111/gravnav/navsys"
)

func main() {
	sceneName := flag.String("scene", "swirl", "scene file or bundled scene name")
	axisName := flag.String("axis", "z", "slice axis: x, y or z")
	start := flag.String("start", "", "agent start x,y,z (default: scene centre)")
	configPath := flag.String("config", "", "navsys config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	axis, err := debugdraw.ParseAxis(*axisName)
	if err != nil {
		log.Fatal(err)
	}
	cfg := navsys.DefaultConfig()
	if *configPath != "" {
		if cfg, err = navsys.LoadConfig(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	sc, err := loadScene(*sceneName)
	if err != nil {
		log.Fatalf("failed to load scene %s: %v", *sceneName, err)
	}

	sys, err := navsys.New(cfg, navsys.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	defer sys.Close()
	vol, err := sys.Build(context.Background(), sc)
	if err != nil {
		log.Fatal(err)
	}

	pos := sc.Bounds.Center()
	if *start != "" {
		if pos, err = parseVec(*start); err != nil {
			log.Fatal(err)
		}
	}
	if !vol.Free(pos) {
		if *start != "" || vol.Empty() {
			logger.Warn("navview: start is not in free space", "start", pos)
		} else {
			pos = vol.Nodes()[0].Center
		}
	}
	mover, err := movement.New(movement.DefaultConfig(), pos, sc.Field)
	if err != nil {
		log.Fatal(err)
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(baseWidth, baseHeight)
	ebiten.SetWindowTitle("navview - " + sc.Name)

	game := NewGame(sys, newSim(sys, mover, logger), axis, logger)
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}

func parseVec(s string) (mgl64.Vec3, error) {
	parts := strings.Split(s, ",")
	var v mgl64.Vec3
	if len(parts) != 3 {
		return v, strconv.ErrSyntax
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}
