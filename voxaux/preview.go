package voxaux

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"sort"
	"sync"

	"github.com/chewxy/math32"
	"github.com/gogpu/gg"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/voxfield"
	"github.com/soypat/voxfield/particle"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// PreviewConfig controls [WritePreviewPNG].
type PreviewConfig struct {
	Width, Height int
	// Supersample is the factor the preview is drawn at before downsampling. Defaults to 2.
	Supersample int
	// Caption is drawn at the bottom left. Empty draws a piece count.
	Caption    string
	NoCaption  bool
	Background color.Color
}

var (
	errPreviewSize = errors.New("preview dimensions must be positive")
	captionFont    = sync.OnceValues(func() (*truetype.Font, error) {
		return truetype.Parse(goregular.TTF)
	})
	pickedTint = colorful.Color{R: 1, G: 0.95, B: 0.8}
)

// WritePreviewPNG draws an orthographic view of the scene's current state, seen
// from +Z with the auto rotation applied, and writes it to w as a PNG image.
func WritePreviewPNG(w io.Writer, s *Scene, cfg PreviewConfig) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errPreviewSize
	}
	if cfg.Supersample <= 0 {
		cfg.Supersample = 2
	}
	if cfg.Background == nil {
		cfg.Background = color.RGBA{R: 12, G: 14, B: 22, A: 255}
	}
	snap := s.Snapshot()
	img, err := drawPreview(&snap, cfg)
	if err != nil {
		return err
	}
	if !cfg.NoCaption {
		caption := cfg.Caption
		if caption == "" {
			caption = fmt.Sprintf("%s  %d pieces", snap.Params.Shape, len(snap.Pieces))
			if snap.Params.Mode == voxfield.Designer {
				caption = fmt.Sprintf("designer  %d elements  %d pieces", snap.Params.EnabledElements(), len(snap.Pieces))
			}
		}
		err = drawCaption(img, caption)
		if err != nil {
			return err
		}
	}
	out := gg.NewContextForImage(img)
	defer out.Close()
	return out.EncodePNG(w)
}

type projected struct {
	x, y, depth, half float32
	col               colorful.Color
}

func drawPreview(snap *Snapshot, cfg PreviewConfig) (*image.RGBA, error) {
	ss := cfg.Supersample
	bw, bh := cfg.Width*ss, cfg.Height*ss
	dc := gg.NewContext(bw, bh)
	defer dc.Close()
	dc.ClearWithColor(gg.FromColor(cfg.Background))

	sin, cos := math32.Sincos(snap.GroupRotation)
	pts := make([]projected, len(snap.Transforms))
	extent := float32(1)
	for i, tr := range snap.Transforms {
		p := tr.Translation
		half := 0.5 * particle.CubeFill * snap.CellSize * tr.Scale
		pts[i] = projected{
			x:     cos*p.X + sin*p.Z,
			y:     p.Y,
			depth: -sin*p.X + cos*p.Z,
			half:  half,
			col:   snap.Pieces[i].Color,
		}
		if snap.Pieces[i].Picked {
			pts[i].col = pts[i].col.BlendRgb(pickedTint, 0.5)
		}
		extent = max(extent, math32.Abs(pts[i].x)+half, math32.Abs(p.Y)+half)
	}
	// Back to front.
	sort.Slice(pts, func(i, j int) bool { return pts[i].depth < pts[j].depth })

	extent *= 1.08
	pxPerUnit := float32(min(bw, bh)) / (2 * extent)
	cx, cy := float32(bw)/2, float32(bh)/2
	for _, pt := range pts {
		t := ms1.Clamp((pt.depth+extent)/(2*extent), 0, 1)
		shade := float64(ms1.Interp(0.45, 1, t))
		dc.SetRGB(pt.col.R*shade, pt.col.G*shade, pt.col.B*shade)
		side := 2 * pt.half * pxPerUnit
		x := cx + pt.x*pxPerUnit - side/2
		y := cy - pt.y*pxPerUnit - side/2
		dc.DrawRectangle(float64(x), float64(y), float64(side), float64(side))
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("drawing piece: %w", err)
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), dc.Image(), image.Rect(0, 0, bw, bh), xdraw.Src, nil)
	return dst, nil
}

func drawCaption(dst *image.RGBA, caption string) error {
	f, err := captionFont()
	if err != nil {
		return fmt.Errorf("parsing caption font: %w", err)
	}
	size := max(8, float64(dst.Bounds().Dy())/28)
	face := truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
	defer face.Close()
	margin := int(size / 2)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{R: 230, G: 230, B: 235, A: 255}),
		Face: face,
		Dot:  fixed.P(margin, dst.Bounds().Dy()-margin),
	}
	d.DrawString(caption)
	return nil
}
