package main

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ebitenui/ebitenui"
	imageui "github.com/ebitenui/ebitenui/image"
	"github.com/ebitenui/ebitenui/widget"
	ebtext "github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/milk9111/gravnav/pathfind"
	"golang.org/x/image/font/basicfont"
)

const panelWidth = 220

var panelAlgorithms = []pathfind.Algorithm{pathfind.LazyThetaStar, pathfind.ThetaStar, pathfind.AStar}

// settingsPanel edits the query settings of a sim. Every change replans
// toward the current goal.
type settingsPanel struct {
	ui         *ebitenui.UI
	panel      *widget.Container
	algorithms *widget.RadioGroup
	algButtons []*widget.Button
	partial    *widget.Button
	smoothing  *widget.Button
	scale      *widget.Text
	sim        *sim
}

func newSettingsPanel(sm *sim, onRebuild func()) *settingsPanel {
	p := &settingsPanel{sim: sm}

	panelImg := imageui.NewNineSliceColor(color.NRGBA{R: 0x00, G: 0x00, B: 0x00, A: 200})
	btnImage := &widget.ButtonImage{
		Idle:    imageui.NewNineSliceColor(color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}),
		Hover:   imageui.NewNineSliceColor(color.NRGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff}),
		Pressed: imageui.NewNineSliceColor(color.NRGBA{R: 0x22, G: 0x44, B: 0x88, A: 0xff}),
	}
	var face ebtext.Face = ebtext.NewGoXFace(basicfont.Face7x13)
	white := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	textColor := &widget.ButtonTextColor{Idle: white, Pressed: color.NRGBA{R: 0xff, G: 0xee, B: 0x88, A: 0xff}}
	stretch := widget.WidgetOpts.LayoutData(widget.RowLayoutData{Stretch: true})

	button := func(label string, toggle bool, onClick func()) *widget.Button {
		opts := []widget.ButtonOpt{
			widget.ButtonOpts.Image(btnImage),
			widget.ButtonOpts.Text(label, &face, textColor),
			widget.ButtonOpts.WidgetOpts(stretch, widget.WidgetOpts.MinSize(panelWidth-20, 24)),
		}
		if toggle {
			opts = append(opts, widget.ButtonOpts.ToggleMode())
		}
		if onClick != nil {
			opts = append(opts, widget.ButtonOpts.ClickedHandler(func(args *widget.ButtonClickedEventArgs) {
				onClick()
				p.refresh()
			}))
		}
		return widget.NewButton(opts...)
	}
	label := func(s string) *widget.Text {
		return widget.NewText(widget.TextOpts.Text(s, &face, white), widget.TextOpts.WidgetOpts(stretch))
	}

	p.panel = widget.NewContainer(
		widget.ContainerOpts.BackgroundImage(panelImg),
		widget.ContainerOpts.Layout(widget.NewRowLayout(
			widget.RowLayoutOpts.Direction(widget.DirectionVertical),
			widget.RowLayoutOpts.Spacing(6),
			widget.RowLayoutOpts.Padding(&widget.Insets{Top: 10, Bottom: 10, Left: 10, Right: 10}),
		)),
		widget.ContainerOpts.WidgetOpts(
			widget.WidgetOpts.MinSize(panelWidth, 0),
			widget.WidgetOpts.LayoutData(widget.AnchorLayoutData{HorizontalPosition: widget.AnchorLayoutPositionEnd, VerticalPosition: widget.AnchorLayoutPositionStart}),
		),
	)

	p.panel.AddChild(label("Algorithm"))
	elements := make([]widget.RadioGroupElement, 0, len(panelAlgorithms))
	for _, alg := range panelAlgorithms {
		btn := button(alg.String(), true, nil)
		p.algButtons = append(p.algButtons, btn)
		elements = append(elements, btn)
		p.panel.AddChild(btn)
	}
	p.algorithms = widget.NewRadioGroup(
		widget.RadioGroupOpts.Elements(elements...),
		widget.RadioGroupOpts.ChangedHandler(func(args *widget.RadioGroupChangedEventArgs) {
			for i, b := range p.algButtons {
				if args.Active == b {
					p.sim.setAlgorithm(panelAlgorithms[i])
					return
				}
			}
		}),
	)

	p.partial = button("", false, p.sim.togglePartial)
	p.smoothing = button("", false, p.sim.toggleSmoothing)
	p.panel.AddChild(p.partial)
	p.panel.AddChild(p.smoothing)

	p.scale = label("")
	p.panel.AddChild(p.scale)
	p.panel.AddChild(button("heuristic -", false, func() { p.sim.stepHeuristic(-1) }))
	p.panel.AddChild(button("heuristic +", false, func() { p.sim.stepHeuristic(1) }))
	p.panel.AddChild(button("rebuild", false, onRebuild))

	root := widget.NewContainer(widget.ContainerOpts.Layout(widget.NewAnchorLayout()))
	root.AddChild(p.panel)
	p.ui = &ebitenui.UI{Container: root}
	p.refresh()
	return p
}

// refresh brings the widgets in line with the sim's settings, which hotkeys
// may also change.
func (p *settingsPanel) refresh() {
	st := p.sim.settings
	for i, alg := range panelAlgorithms {
		if alg == st.Algorithm && p.algorithms.Active() != p.algButtons[i] {
			p.algorithms.SetActive(p.algButtons[i])
		}
	}
	p.partial.Text().Label = fmt.Sprintf("partial paths: %s", onOff(st.AllowPartial))
	p.smoothing.Text().Label = fmt.Sprintf("smoothing: %s", onOff(!st.DisableSmoothing))
	p.scale.Label = fmt.Sprintf("heuristic scale %.2f", p.sim.heuristicScale())
}

// contains reports whether a screen point is over the panel.
func (p *settingsPanel) contains(x, y int) bool {
	return image.Pt(x, y).In(p.panel.GetWidget().Rect)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
