package vector

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	"github.com/go-pdf/fpdf"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// ConversionError reports a failed SVG to PDF rendering.
type ConversionError struct {
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s to PDF: %v", e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// maxRenderSide caps the raster used to embed the SVG in the PDF.
const maxRenderSide = 8192

// RasterizeSVG renders the SVG at svgPath at its view box size.
func RasterizeSVG(svgPath string) (*image.RGBA, error) {
	f, err := os.Open(svgPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	icon, err := oksvg.ReadIconStream(f, oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}

	w, h := int(math.Ceil(icon.ViewBox.W)), int(math.Ceil(icon.ViewBox.H))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("SVG has an empty view box")
	}
	if w > maxRenderSide || h > maxRenderSide {
		return nil, fmt.Errorf("SVG view box %dx%d exceeds %d pixels", w, h, maxRenderSide)
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	return rgba, nil
}

// RasterizeToPDF writes a single-page PDF at pdfPath whose page matches the
// SVG view box, one point per SVG unit. Failures are *ConversionError.
func RasterizeToPDF(svgPath, pdfPath string) error {
	rendered, err := RasterizeSVG(svgPath)
	if err != nil {
		return &ConversionError{Path: svgPath, Err: err}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, rendered); err != nil {
		return &ConversionError{Path: svgPath, Err: err}
	}

	w := float64(rendered.Bounds().Dx())
	h := float64(rendered.Bounds().Dy())

	// Landscape would swap Wd and Ht; the page size already carries the shape.
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("design", opts, &buf)
	pdf.ImageOptions("design", 0, 0, w, h, false, opts, 0, "")

	if err := pdf.OutputFileAndClose(pdfPath); err != nil {
		return &ConversionError{Path: svgPath, Err: err}
	}
	return nil
}
