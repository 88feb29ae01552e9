package main

import (
	"fmt"
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/milk9111/gravnav/debugdraw"
	"github.com/milk9111/gravnav/navsys"
	"github.com/milk9111/gravnav/pathfind"
	"github.com/milk9111/gravnav/scene"
)

const (
	baseWidth  = 1280
	baseHeight = 720
)

type Game struct {
	sys    *navsys.System
	sim    *sim
	panel  *settingsPanel
	view   debugdraw.View
	radius float64
	logger *slog.Logger
}

func NewGame(sys *navsys.System, sm *sim, axis debugdraw.Axis, logger *slog.Logger) *Game {
	g := &Game{sys: sys, sim: sm, logger: logger}
	g.panel = newSettingsPanel(sm, g.rebuild)
	if snap := sys.Snapshot(); snap != nil {
		g.view = debugdraw.Fit(snap.Scene.Bounds, axis, baseWidth, baseHeight)
		g.radius = snap.Volume.AgentRadius()
	}
	return g
}

func (g *Game) Update() error {
	snap := g.sys.Snapshot()
	if snap == nil {
		return nil
	}
	cell := snap.Volume.CellSize()

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyPageUp), inpututil.IsKeyJustPressed(ebiten.KeyE):
		g.view = g.view.Step(1, cell)
	case inpututil.IsKeyJustPressed(ebiten.KeyPageDown), inpututil.IsKeyJustPressed(ebiten.KeyQ):
		g.view = g.view.Step(-1, cell)
	case inpututil.IsKeyJustPressed(ebiten.KeyTab):
		next := (g.view.Axis + 1) % 3
		g.view = debugdraw.Fit(snap.Scene.Bounds, next, baseWidth, baseHeight)
	case inpututil.IsKeyJustPressed(ebiten.Key1):
		g.sim.setAlgorithm(pathfind.LazyThetaStar)
	case inpututil.IsKeyJustPressed(ebiten.Key2):
		g.sim.setAlgorithm(pathfind.ThetaStar)
	case inpututil.IsKeyJustPressed(ebiten.Key3):
		g.sim.setAlgorithm(pathfind.AStar)
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.rebuild()
	}
	g.panel.refresh()
	g.panel.ui.Update()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		if x, y := ebiten.CursorPosition(); !g.panel.contains(x, y) {
			g.sim.plan(g.view.Unproject(float64(x), float64(y)))
		}
	}

	obstructed := ebiten.IsKeyPressed(ebiten.KeySpace)
	g.sim.tick(1/float64(ebiten.TPS()), obstructed)
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	snap := g.sys.Snapshot()
	if snap == nil {
		return
	}
	d := debugdraw.Drawer{Screen: screen, View: g.view}
	nodes := d.Volume(snap.Volume)
	d.Obstacles(snap.Scene)
	d.Path(g.sim.path)
	d.Mover(g.sim.mover, g.radius)
	d.HUD(
		fmt.Sprintf("scene %s v%d, %d nodes in slice, FPS %.1f", snap.Scene.Name, snap.Version, nodes, ebiten.ActualFPS()),
		fmt.Sprintf("%s, %s: %s", g.sim.settings.Algorithm, g.sim.mover.Mode(), g.sim.status),
		"click goal  Q/E slice  Tab axis  1-3 algorithm  R rebuild  Space obstruct",
	)
	g.panel.ui.Draw(screen)
}

func (g *Game) rebuild() {
	if snap := g.sys.Snapshot(); snap != nil {
		g.sim.rebuild(snap.Scene)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return baseWidth, baseHeight
}

// loadScene reads a scene file, or a bundled scene when no such file exists.
func loadScene(arg string) (*scene.Scene, error) {
	sc, err := scene.Load(arg)
	if err == nil {
		return sc, nil
	}
	return scene.LoadEmbedded(arg)
}
