package semistaticlights

// Color is a linear RGB colour. Components may exceed 1 for HDR ambient
// sources; lighting towers clamp to [0, 1] when they store it.
type Color struct {
	R, G, B float32
}

// Scale returns c multiplied by s.
func (c Color) Scale(s float32) Color {
	return Color{c.R * s, c.G * s, c.B * s}
}

// Add returns the component-wise sum of c and o.
func (c Color) Add(o Color) Color {
	return Color{c.R + o.R, c.G + o.G, c.B + o.B}
}

// Mul returns the component-wise product of c and o.
func (c Color) Mul(o Color) Color {
	return Color{c.R * o.R, c.G * o.G, c.B * o.B}
}

// Vec4 returns the colour as an RGBA tuple with alpha 1.
func (c Color) Vec4() [4]float32 {
	return [4]float32{c.R, c.G, c.B, 1}
}

// White is Color{1, 1, 1}.
var White = Color{1, 1, 1}
