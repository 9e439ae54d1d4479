package timeline

import (
	"math"
	"strings"

	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/shortage"
)

// MinBarWidth keeps zero-length incidents visible.
const MinBarWidth = 2.0

const (
	maxChartWidth = 900.0
	minSVGWidth   = 50.0
	rowPadding    = 8.0
)

// Layout holds the pixel dimensions of the table chart.
type Layout struct {
	ContainerWidth float64 `json:"container_width"`
	RowHeight      float64 `json:"row_height"`
	BarHeight      float64 `json:"bar_height"`
	IconWidth      float64 `json:"icon_width"`
	LabelWidth     float64 `json:"label_width"`
	Gap            float64 `json:"gap"`
	MarkerWidth    float64 `json:"marker_width"`
	MarkerHeight   float64 `json:"marker_height"`
	TrackWidth     float64 `json:"track_width"`
}

// DesktopLayout returns the dimensions used above 700px.
func DesktopLayout(containerWidth float64) Layout {
	return Layout{
		ContainerWidth: containerWidth,
		RowHeight:      23,
		BarHeight:      15,
		IconWidth:      20,
		LabelWidth:     180,
		Gap:            12,
		MarkerWidth:    8,
		MarkerHeight:   17,
		TrackWidth:     15,
	}
}

// MobileLayout returns the compact dimensions.
func MobileLayout(containerWidth float64) Layout {
	return Layout{
		ContainerWidth: containerWidth,
		RowHeight:      23,
		BarHeight:      15,
		IconWidth:      16,
		LabelWidth:     70,
		Gap:            6,
		MarkerWidth:    6,
		MarkerHeight:   15,
		TrackWidth:     15,
	}
}

// LayoutFor picks the layout for a viewport width.
func LayoutFor(viewportWidth float64) Layout {
	if viewportWidth <= 700 {
		return MobileLayout(viewportWidth)
	}
	return DesktopLayout(math.Min(viewportWidth, maxChartWidth))
}

// SVGWidth is the width left for the timeline once icon, label, marker,
// gaps and padding are reserved.
func (l Layout) SVGWidth() float64 {
	reserved := l.IconWidth + l.LabelWidth + l.MarkerWidth + 2*l.Gap + 2*rowPadding
	return math.Max(minSVGWidth, math.Min(maxChartWidth, l.ContainerWidth)-reserved)
}

// Scale maps dates linearly onto [0, Width]. Dates outside the domain
// extrapolate.
type Scale struct {
	Start entities.Date
	End   entities.Date
	Width float64
}

func NewScale(start, end entities.Date, width float64) Scale {
	return Scale{Start: start, End: end, Width: width}
}

// X returns the horizontal position of d.
func (s Scale) X(d entities.Date) float64 {
	span := s.End.Time().Sub(s.Start.Time())
	if span <= 0 {
		return 0
	}
	return float64(d.Time().Sub(s.Start.Time())) / float64(span) * s.Width
}

// Bar is one incident drawn on a row.
type Bar struct {
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	Width   float64         `json:"width"`
	Height  float64         `json:"height"`
	Start   entities.Date   `json:"start"`
	End     entities.Date   `json:"end"`
	Status  entities.Status `json:"status"`
	Class   string          `json:"class"`
	Tooltip BarTooltip      `json:"tooltip"`
}

// Marker is the status box drawn at the report date.
type Marker struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
}

// Row is one product line of the table chart.
type Row struct {
	Product      string              `json:"product"`
	Label        string              `json:"label"`
	ShortLabel   string              `json:"short_label"`
	ProductID    int                 `json:"product_id"`
	Recent       bool                `json:"recent"`
	Change       *Change             `json:"change,omitempty"`
	Status       shortage.StatusInfo `json:"status"`
	MainIncident entities.Incident   `json:"-"`
	Incidents    []entities.Incident `json:"-"`
	TrackEnd     float64             `json:"track_end"`
	Bars         []Bar               `json:"bars"`
	Marker       Marker              `json:"marker"`
	Tooltip      RowTooltip          `json:"tooltip"`
}

// Input is what the table chart is computed from.
type Input struct {
	Products         []string
	AccentedProducts []string
	Incidents        []entities.Incident
	StartDate        entities.Date
	EndDate          entities.Date
	ReportDate       entities.Date
}

// Chart is the fully laid out table chart.
type Chart struct {
	Layout      Layout        `json:"layout"`
	Width       float64       `json:"width"`
	ReportDate  entities.Date `json:"report_date"`
	StartDate   entities.Date `json:"start_date"`
	EndDate     entities.Date `json:"end_date"`
	RecentCount int           `json:"recent_count"`
	Rows        []Row         `json:"rows"`
}

// OrderProducts puts recently changed products first, both groups keeping
// their original relative order. It returns original indexes.
func OrderProducts(products []string, changes map[string]Change) []int {
	order := make([]int, 0, len(products))
	for i, p := range products {
		if _, ok := changes[p]; ok {
			order = append(order, i)
		}
	}
	for i, p := range products {
		if _, ok := changes[p]; !ok {
			order = append(order, i)
		}
	}
	return order
}

// ShortLabel keeps the text before the comma of a label that has exactly one.
func ShortLabel(label string) string {
	if strings.Count(label, ",") == 1 {
		return strings.TrimSpace(label[:strings.Index(label, ",")])
	}
	return label
}

// BarEnd is the report date for an ongoing discontinuation and the
// calculated end otherwise.
func BarEnd(inc entities.Incident, reportDate entities.Date) entities.Date {
	if inc.IsOngoingDiscontinuation() {
		return reportDate
	}
	return inc.CalculatedEndDate
}

// BarFor computes the geometry of one incident bar.
func BarFor(inc entities.Incident, scale Scale, layout Layout, reportDate entities.Date) Bar {
	start := entities.MaxDate(inc.StartDate, scale.Start)
	end := BarEnd(inc, reportDate)
	x := scale.X(start)

	return Bar{
		X:       x,
		Y:       (layout.RowHeight - layout.BarHeight) / 2,
		Width:   math.Max(MinBarWidth, scale.X(end)-x),
		Height:  layout.BarHeight,
		Start:   start,
		End:     end,
		Status:  inc.Status,
		Class:   strings.ToLower("bar " + string(inc.Status) + "-fill"),
		Tooltip: NewBarTooltip(inc, reportDate),
	}
}

// BuildChart orders the rows and computes every bar and marker.
func BuildChart(in Input, layout Layout) Chart {
	width := layout.SVGWidth()
	scale := NewScale(in.StartDate, in.EndDate, width)
	changes := RecentChanges(in.Incidents, in.ReportDate, RecentDays)

	byProduct := make(map[string][]entities.Incident, len(in.Products))
	for _, inc := range in.Incidents {
		byProduct[inc.Product] = append(byProduct[inc.Product], inc)
	}

	chart := Chart{
		Layout:     layout,
		Width:      width,
		ReportDate: in.ReportDate,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		Rows:       make([]Row, 0, len(in.Products)),
	}

	reportX := scale.X(in.ReportDate)
	for _, idx := range OrderProducts(in.Products, changes) {
		product := in.Products[idx]
		label := product
		if idx < len(in.AccentedProducts) {
			label = in.AccentedProducts[idx]
		}

		incidents := byProduct[product]
		var main entities.Incident
		if len(incidents) > 0 {
			main = incidents[0]
		}
		status := shortage.Classify(main, in.ReportDate)

		row := Row{
			Product:      product,
			Label:        label,
			ShortLabel:   ShortLabel(label),
			ProductID:    main.ProductID,
			Status:       status,
			MainIncident: main,
			Incidents:    incidents,
			TrackEnd:     reportX,
			Bars:         make([]Bar, 0, len(incidents)),
			Marker: Marker{
				X:      reportX - layout.MarkerWidth/2,
				Y:      (layout.RowHeight - layout.MarkerHeight) / 2,
				Width:  layout.MarkerWidth,
				Height: layout.MarkerHeight,
				Color:  status.Color,
			},
			Tooltip: NewRowTooltip(label, main, status, in.ReportDate),
		}
		if change, ok := changes[product]; ok {
			c := change
			row.Recent = true
			row.Change = &c
			chart.RecentCount++
		}
		for _, inc := range incidents {
			row.Bars = append(row.Bars, BarFor(inc, scale, layout, in.ReportDate))
		}
		chart.Rows = append(chart.Rows, row)
	}

	return chart
}
