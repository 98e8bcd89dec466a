// Command lpvdemo lights a procedural terrain with the light-bounce pipeline
// and writes debug views of the volumes it computed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	semistaticlights "github.com/arigo/SemiStaticLights"
	"github.com/arigo/SemiStaticLights/debugviz"
	_ "github.com/arigo/SemiStaticLights/gpu"
	"github.com/arigo/SemiStaticLights/internal/software"
	"github.com/arigo/SemiStaticLights/voxelize"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/ojrac/opensimplex-go"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func main() {
	var (
		res      = flag.Int("res", 32, "voxels per cascade axis (multiple of 4)")
		cascades = flag.Int("cascades", 4, "number of cascades")
		pixel    = flag.Float64("pixel", 0.25, "voxel size of cascade 0 in world units")
		seed     = flag.Int64("seed", 1, "terrain noise seed")
		columns  = flag.Int("columns", 24, "terrain columns along each side")
		sunX     = flag.Float64("sun-x", 0.3, "light direction x")
		sunY     = flag.Float64("sun-y", -1, "light direction y")
		sunZ     = flag.Float64("sun-z", 0.2, "light direction z")
		out      = flag.String("out", "lpvdemo-out", "output directory")
		stride   = flag.Int("gizmo-stride", 4, "tower gizmo sampling stride")
		cpu      = flag.Bool("software", false, "run on the CPU even if a GPU device is registered")
		workers  = flag.Int("workers", 0, "CPU workers (0 = GOMAXPROCS)")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	semistaticlights.SetLogger(logger)

	if err := os.MkdirAll(*out, 0o750); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	scene := buildTerrain(*seed, *columns, float32(*pixel)*float32(*res)/float32(*columns))
	if err := voxelize.SaveGLB(filepath.Join(*out, "scene.glb"), scene.meshes); err != nil {
		logger.Warn("scene export failed", "err", err)
	}

	opts := []semistaticlights.Option{
		semistaticlights.WithDebugReadback(true),
		semistaticlights.WithWorkers(*workers),
	}
	if *cpu {
		opts = append(opts, semistaticlights.WithDevice(software.New(*workers)))
	}

	var ambient semistaticlights.SHL2
	ambient.AddAmbient(semistaticlights.Color{R: 0.15, G: 0.17, B: 0.2})
	ambient.AddDirectional(mgl32.Vec3{0, 1, 0}, semistaticlights.Color{R: 0.5, G: 0.6, B: 0.8})

	proj := &voxelize.Projector{Scene: voxelize.NewScene(scene.meshes...), Workers: *workers}
	p, err := semistaticlights.New(proj, &ambient, opts...)
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}
	defer p.Close()

	cfg := semistaticlights.DefaultConfig()
	cfg.GridResolution = *res
	cfg.NumCascades = *cascades
	cfg.BasePixelSize = float32(*pixel)
	cfg.Center = mgl32.Vec3{0, scene.top / 2, 0}
	cfg.Light = semistaticlights.NewDirectionalLight(mgl32.Vec3{float32(*sunX), float32(*sunY), float32(*sunZ)})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Bad configuration: %v", err)
	}

	if err := p.ComputeLightBounces(context.Background(), cfg); err != nil {
		log.Fatalf("Light bounce computation failed: %v", err)
	}
	printStats(p, len(scene.meshes))

	output, ok := p.Output()
	if !ok {
		log.Fatal("Pipeline published no output")
	}
	writeDebugViews(logger, p, output, *out, *stride)
	log.Printf("Debug views saved to %s\n", *out)
}

type terrain struct {
	meshes []voxelize.Mesh
	top    float32
}

// buildTerrain lays out columns x columns boxes whose heights follow fractal
// simplex noise, on a floor slab.
func buildTerrain(seed int64, columns int, cell float32) terrain {
	noise := opensimplex.New32(seed)
	half := float32(columns) * cell / 2

	t := terrain{}
	floor := voxelize.Box(mgl32.Vec3{-half, -cell, -half}, mgl32.Vec3{half, 0, half})
	floor.Name = "floor"
	t.meshes = append(t.meshes, floor)

	for i := 0; i < columns; i++ {
		for k := 0; k < columns; k++ {
			h := fractalNoise(noise, float32(i), float32(k), 4, 3, 2, 0.5, 12) * cell
			if h <= 0 {
				continue
			}
			x := -half + float32(i)*cell
			z := -half + float32(k)*cell
			col := voxelize.Box(mgl32.Vec3{x, 0, z}, mgl32.Vec3{x + cell, h, z + cell})
			col.Name = fmt.Sprintf("column_%d_%d", i, k)
			if h < cell {
				// Low shrubs let some light through.
				col.Transmittance = 0.5
				col.Layer = 1
			}
			t.meshes = append(t.meshes, col)
			t.top = max(t.top, h)
		}
	}
	return t
}

func fractalNoise(noise opensimplex.Noise32, x, z, amplitude float32, octaves int, lacunarity, persistence, scale float32) float32 {
	var val float32
	for i := 0; i < octaves; i++ {
		val += noise.Eval2(x/scale, z/scale) * amplitude
		x *= lacunarity
		z *= lacunarity
		amplitude *= persistence
	}
	return val
}

func printStats(p *semistaticlights.Pipeline, meshes int) {
	pr := message.NewPrinter(language.English)
	st := p.Stats()
	_, _ = pr.Printf("pipeline %s on %s\n", p.ID(), p.Device().Name())
	_, _ = pr.Printf("  meshes       %d\n", meshes)
	_, _ = pr.Printf("  dispatches   %d\n", st.Dispatches)
	_, _ = pr.Printf("  reallocated  %v\n", st.Reallocated)
	_, _ = pr.Printf("  rasterize    %v\n", st.Rasterize)
	_, _ = pr.Printf("  seed         %v\n", st.Seed)
	_, _ = pr.Printf("  propagate    %v\n", st.Propagate)
	_, _ = pr.Printf("  total        %v\n", st.Total)
}

// writeDebugViews writes slice sheets, gizmo scenes and dumps of every
// volume. Failures are logged and skipped.
func writeDebugViews(logger *slog.Logger, p *semistaticlights.Pipeline, out semistaticlights.Output, dir string, stride int) {
	n := out.GridResolution
	for c := 0; c < out.NumCascades; c++ {
		texels, err := p.ReadGeometryVolume(c)
		if err != nil {
			logger.Warn("geometry read-back failed", "cascade", c, "err", err)
			continue
		}
		base := filepath.Join(dir, fmt.Sprintf("gv_c%d", c))
		writeSheet(logger, base+".png", texels, n, n, debugviz.Opacity)
		writeDump(logger, base+".sslv", texels, n, n, debugviz.Opacity)
		if cubes := debugviz.GeometryCubes(texels, n, out.WorldToCascadeLocal[c]); len(cubes) > 0 {
			if err := debugviz.WriteGizmosGLB(base+".glb", fmt.Sprintf("gv_c%d", c), cubes); err != nil {
				logger.Warn("gizmo export failed", "path", base+".glb", "err", err)
			}
		}
	}

	for i, ray := range out.Rays {
		texels, err := p.ReadTower(i)
		if err != nil {
			logger.Warn("tower read-back failed", "ray", i, "err", err)
			continue
		}
		name := fmt.Sprintf("tower_%s", ray.Orientation)
		if ray.Backward {
			name += "_back"
		}
		base := filepath.Join(dir, name)
		writeSheet(logger, base+".png", texels, n, n*out.NumCascades, debugviz.Light)
		writeDump(logger, base+".sslv", texels, n, n*out.NumCascades, debugviz.Light)
		cubes := debugviz.TowerCubes(texels, n, 0, stride, out.WorldToCascadeLocal[0])
		if err := debugviz.WriteGizmosGLB(base+".glb", name, cubes); err != nil {
			logger.Warn("gizmo export failed", "path", base+".glb", "err", err)
		}
	}
}

func writeSheet(logger *slog.Logger, path string, texels []uint32, n, depth int, k debugviz.Kind) {
	img, err := debugviz.Sheet(texels, n, depth, k, 4)
	if err == nil {
		err = debugviz.SavePNG(path, img)
	}
	if err != nil {
		logger.Warn("sheet export failed", "path", path, "err", err)
	}
}

func writeDump(logger *slog.Logger, path string, texels []uint32, n, depth int, k debugviz.Kind) {
	f, err := os.Create(path) //nolint:gosec // path built from the output flag
	if err != nil {
		logger.Warn("dump export failed", "path", path, "err", err)
		return
	}
	err = debugviz.WriteVolume(f, debugviz.Volume{Kind: k, Width: n, Height: n, Depth: depth, Texels: texels})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		logger.Warn("dump export failed", "path", path, "err", err)
	}
}
