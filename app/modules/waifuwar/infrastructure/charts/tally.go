// Package charts renders division tallies as PNG bar charts.
package charts

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Palette colors a tally chart.
type Palette struct {
	Background drawing.Color
	Text       drawing.Color
	Left       drawing.Color
	Right      drawing.Color
}

// DefaultPalette matches the embed colors of the chat messages.
var DefaultPalette = Palette{
	Background: drawing.ColorFromHex("2B2D31"),
	Text:       drawing.ColorFromHex("DBDEE1"),
	Left:       drawing.ColorFromHex("5865F2"),
	Right:      drawing.ColorFromHex("EB459E"),
}

const (
	chartHeight = 480
	barWidth    = 40
	barSpacing  = 12
	minWidth    = 400
	maxLabel    = 14
)

// RenderTally draws one bar per entrant, in roster order, with its division's
// votes. Left and right entrants use the palette's two colors.
func RenderTally(title string, divisions []waifuwartypes.Division, palette Palette) ([]byte, error) {
	if len(divisions) == 0 {
		return renderNoData(palette, "No divisions to chart")
	}

	bars := make([]chart.Value, 0, 2*len(divisions))
	highest := 1.0
	for _, d := range divisions {
		bars = append(bars,
			bar(d.Left, d.LeftVotes, palette.Left),
			bar(d.Right, d.RightVotes, palette.Right),
		)
		highest = max(highest, float64(d.LeftVotes), float64(d.RightVotes))
	}

	graph := chart.BarChart{
		Title:      title,
		TitleStyle: chart.Style{FontColor: palette.Text},
		Width:      max(minWidth, len(bars)*(barWidth+barSpacing)+120),
		Height:     chartHeight,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{
			FillColor: palette.Background,
			Padding:   chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		Canvas: chart.Style{FillColor: palette.Background},
		XAxis: chart.Style{
			FontColor:           palette.Text,
			TextRotationDegrees: 45,
		},
		YAxis: chart.YAxis{
			Name:           "Votes",
			Style:          chart.Style{FontColor: palette.Text},
			Range:          &chart.ContinuousRange{Min: 0, Max: highest},
			ValueFormatter: chart.IntValueFormatter,
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render tally chart: %w", err)
	}
	return buffer.Bytes(), nil
}

func bar(slot waifuwartypes.RosterSlot, votes int, color drawing.Color) chart.Value {
	return chart.Value{
		Label: fmt.Sprintf("#%d %s", slot.Position, shorten(slot.Entrant.Name)),
		Value: float64(votes),
		Style: chart.Style{FillColor: color, StrokeColor: color},
	}
}

func shorten(name string) string {
	if utf8.RuneCountInString(name) <= maxLabel {
		return name
	}
	r := []rune(name)
	return string(r[:maxLabel-1]) + "…"
}

// renderNoData draws a single empty bar under msg. go-chart refuses to render
// a chart without series or bars.
func renderNoData(palette Palette, msg string) ([]byte, error) {
	graph := chart.BarChart{
		Title:      msg,
		TitleStyle: chart.Style{FontColor: palette.Text},
		Width:      minWidth,
		Height:     200,
		BarWidth:   barWidth,
		Background: chart.Style{
			FillColor: palette.Background,
			Padding:   chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		Canvas: chart.Style{FillColor: palette.Background},
		XAxis:  chart.Style{FontColor: palette.Text},
		YAxis: chart.YAxis{
			Style:          chart.Style{FontColor: palette.Text},
			Range:          &chart.ContinuousRange{Min: 0, Max: 1},
			ValueFormatter: chart.IntValueFormatter,
		},
		Bars: []chart.Value{{
			Label: "-",
			Value: 0,
			Style: chart.Style{FillColor: palette.Background, StrokeColor: palette.Background},
		}},
	}
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render placeholder chart: %w", err)
	}
	return buffer.Bytes(), nil
}
