package timeline

import (
	"strconv"
	"strings"
)

const (
	recentTitle = "Changements de statut ces 7 derniers jours"
	otherTitle  = "Autres situations de disponibilité"
	titleHeight = 24.0
)

// Canvas is the drawing port of the table chart. Implementations only draw;
// every position they receive has already been computed.
type Canvas interface {
	Begin(width, height float64) error
	Title(x, y float64, text string) error
	Label(x, y float64, text, href, class string) error
	Line(x1, y1, x2, y2 float64, stroke string, strokeWidth float64) error
	Rect(x, y, w, h float64, class, fill, title string) error
	End() error
}

// Height is the total height of the drawn chart, section titles included.
func (c Chart) Height() float64 {
	h := float64(len(c.Rows)) * c.Layout.RowHeight
	if c.RecentCount > 0 {
		h += titleHeight
	}
	if c.RecentCount < len(c.Rows) {
		h += titleHeight
	}
	return h
}

// TotalWidth is the width of a row: icon, label, timeline, marker and gaps.
func (c Chart) TotalWidth() float64 {
	return c.timelineOffset() + c.Width + c.Layout.MarkerWidth + rowPadding
}

func (c Chart) timelineOffset() float64 {
	return rowPadding + c.Layout.IconWidth + c.Layout.Gap + c.Layout.LabelWidth + c.Layout.Gap
}

// Draw sends the chart to a canvas, row by row.
func Draw(chart Chart, canvas Canvas) error {
	if err := canvas.Begin(chart.TotalWidth(), chart.Height()); err != nil {
		return err
	}

	offset := chart.timelineOffset()
	layout := chart.Layout
	y := 0.0
	otherTitled := false

	for i, row := range chart.Rows {
		if i == 0 && row.Recent {
			if err := canvas.Title(rowPadding, y+titleHeight*0.7, recentTitle); err != nil {
				return err
			}
			y += titleHeight
		}
		if !row.Recent && !otherTitled {
			if err := canvas.Title(rowPadding, y+titleHeight*0.7, otherTitle); err != nil {
				return err
			}
			y += titleHeight
			otherTitled = true
		}

		if err := drawRow(canvas, row, layout, offset, y); err != nil {
			return err
		}
		y += layout.RowHeight
	}

	return canvas.End()
}

func drawRow(canvas Canvas, row Row, layout Layout, offset, y float64) error {
	mid := y + layout.RowHeight/2

	if err := canvas.Rect(rowPadding, mid-layout.IconWidth/4, layout.IconWidth/2, layout.IconWidth/2,
		"status-icon "+string(row.Status.Kind), row.Status.Color, row.Status.Text); err != nil {
		return err
	}

	href := ""
	if row.ProductID != 0 {
		href = "/product/" + strconv.Itoa(row.ProductID)
	}
	class := "maintbl-row-label"
	if row.Recent {
		class += " recently-changed-row"
	}
	if err := canvas.Label(rowPadding+layout.IconWidth+layout.Gap, mid+4, row.ShortLabel, href, class); err != nil {
		return err
	}

	if err := canvas.Line(offset, mid, offset+row.TrackEnd, mid, "var(--vertleger)", layout.TrackWidth); err != nil {
		return err
	}

	for _, bar := range row.Bars {
		if err := canvas.Rect(offset+bar.X, y+bar.Y, bar.Width, bar.Height, bar.Class, "", barTitle(bar.Tooltip)); err != nil {
			return err
		}
	}

	m := row.Marker
	return canvas.Rect(offset+m.X, y+m.Y, m.Width, m.Height, "status-marker", m.Color, row.Tooltip.Status)
}

func barTitle(t BarTooltip) string {
	parts := []string{t.Title, t.Heading}
	if t.Period != "" {
		parts = append(parts, t.Period+" ("+t.Duration+")")
	}
	return strings.Join(parts, "\n")
}
