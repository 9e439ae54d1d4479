package timeline

import (
	"bytes"
	"fmt"
	"html"
	"io"
)

// SVGCanvas draws the table chart as a standalone SVG document.
type SVGCanvas struct {
	buf bytes.Buffer
}

var _ Canvas = (*SVGCanvas)(nil)

func NewSVGCanvas() *SVGCanvas {
	return &SVGCanvas{}
}

func (c *SVGCanvas) Begin(width, height float64) error {
	c.buf.Reset()
	_, err := fmt.Fprintf(&c.buf,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%.1f" height="%.1f" viewBox="0 0 %.1f %.1f" font-family="sans-serif" font-size="12">`+"\n",
		width, height, width, height)
	return err
}

func (c *SVGCanvas) Title(x, y float64, text string) error {
	_, err := fmt.Fprintf(&c.buf, `<text x="%.1f" y="%.1f" class="section-title" font-weight="bold">%s</text>`+"\n",
		x, y, html.EscapeString(text))
	return err
}

func (c *SVGCanvas) Label(x, y float64, text, href, class string) error {
	label := fmt.Sprintf(`<text x="%.1f" y="%.1f" class="%s">%s</text>`, x, y, html.EscapeString(class), html.EscapeString(text))
	if href != "" {
		label = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), label)
	}
	_, err := c.buf.WriteString(label + "\n")
	return err
}

func (c *SVGCanvas) Line(x1, y1, x2, y2 float64, stroke string, strokeWidth float64) error {
	_, err := fmt.Fprintf(&c.buf, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="%.1f"/>`+"\n",
		x1, y1, x2, y2, html.EscapeString(stroke), strokeWidth)
	return err
}

func (c *SVGCanvas) Rect(x, y, w, h float64, class, fill, title string) error {
	attrs := fmt.Sprintf(`x="%.1f" y="%.1f" width="%.1f" height="%.1f"`, x, y, w, h)
	if class != "" {
		attrs += fmt.Sprintf(` class="%s"`, html.EscapeString(class))
	}
	if fill != "" {
		attrs += fmt.Sprintf(` style="fill:%s"`, html.EscapeString(fill))
	}

	var err error
	if title == "" {
		_, err = fmt.Fprintf(&c.buf, "<rect %s/>\n", attrs)
	} else {
		_, err = fmt.Fprintf(&c.buf, "<rect %s><title>%s</title></rect>\n", attrs, html.EscapeString(title))
	}
	return err
}

func (c *SVGCanvas) End() error {
	_, err := c.buf.WriteString("</svg>\n")
	return err
}

// Bytes returns the document drawn so far.
func (c *SVGCanvas) Bytes() []byte {
	return c.buf.Bytes()
}

// WriteTo writes the document to w.
func (c *SVGCanvas) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.buf.Bytes())
	return int64(n), err
}

// RenderSVG lays out and draws a chart in one call.
func RenderSVG(chart Chart) ([]byte, error) {
	canvas := NewSVGCanvas()
	if err := Draw(chart, canvas); err != nil {
		return nil, fmt.Errorf("failed to draw timeline: %w", err)
	}
	return canvas.Bytes(), nil
}
