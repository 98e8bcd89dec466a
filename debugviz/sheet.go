// Package debugviz turns read-back pipeline volumes into artifacts a person
// can inspect: PNG slice sheets, glTF gizmo scenes and compressed dumps.
//
// Every function takes the texels returned by Pipeline.ReadGeometryVolume or
// Pipeline.ReadTower; nothing here touches a device.
package debugviz

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/arigo/SemiStaticLights/internal/volume"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Kind tells how a volume's texels are encoded.
type Kind uint8

const (
	// Opacity texels hold unorm8 transmittance (geometry volumes).
	Opacity Kind = iota

	// Light texels hold packed RGBA8 colour (lighting towers).
	Light
)

// String returns "opacity" or "light".
func (k Kind) String() string {
	switch k {
	case Opacity:
		return "opacity"
	case Light:
		return "light"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// texelColor converts one texel into a displayable colour. Opacity is shown
// as grey levels, white for empty space.
func texelColor(k Kind, v uint32) color.RGBA {
	if k == Opacity {
		g := uint8(min(v, 255)) //nolint:gosec // clamped to a byte
		return color.RGBA{g, g, g, 255}
	}
	return color.RGBA{uint8(v), uint8(v >> 8), uint8(v >> 16), 255} //nolint:gosec // byte extraction
}

// Slice renders layer z of an n x n x depth volume. Image rows run from
// +Y at the top to -Y at the bottom.
func Slice(texels []uint32, n, z int, k Kind) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			img.SetRGBA(x, n-1-y, texelColor(k, texels[volume.Index(n, x, y, z)]))
		}
	}
	return img
}

// labelHeight is the strip above each cell reserved for its caption.
const labelHeight = 14

var sheetBackground = color.RGBA{32, 32, 48, 255}

// Sheet tiles every z layer of an n x n x depth volume into one image,
// scaling each layer by scale and captioning it with its z index. Tower
// cascades appear as consecutive runs of n layers.
func Sheet(texels []uint32, n, depth int, k Kind, scale int) (*image.RGBA, error) {
	if n <= 0 || depth <= 0 || len(texels) < n*n*depth {
		return nil, fmt.Errorf("debugviz: %d texels do not hold a %dx%dx%d volume", len(texels), n, n, depth)
	}
	scale = max(scale, 1)
	cols := int(math.Ceil(math.Sqrt(float64(depth))))
	rows := (depth + cols - 1) / cols
	cellW := n*scale + 2
	cellH := n*scale + 2 + labelHeight

	sheet := image.NewRGBA(image.Rect(0, 0, cols*cellW, rows*cellH))
	xdraw.Draw(sheet, sheet.Bounds(), image.NewUniform(sheetBackground), image.Point{}, xdraw.Src)

	drawer := &font.Drawer{
		Dst:  sheet,
		Src:  image.NewUniform(color.RGBA{220, 220, 220, 255}),
		Face: basicfont.Face7x13,
	}
	for z := 0; z < depth; z++ {
		ox := (z % cols) * cellW
		oy := (z / cols) * cellH

		drawer.Dot = fixed.P(ox+1, oy+labelHeight-3)
		drawer.DrawString(fmt.Sprintf("z=%d", z))

		dst := image.Rect(ox+1, oy+labelHeight+1, ox+1+n*scale, oy+labelHeight+1+n*scale)
		src := Slice(texels, n, z, k)
		xdraw.NearestNeighbor.Scale(sheet, dst, src, src.Bounds(), xdraw.Src, nil)
	}
	return sheet, nil
}

// SavePNG encodes img to path.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path) //nolint:gosec // caller-chosen output path
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
