package semistaticlights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arigo/SemiStaticLights/compute"
	"github.com/arigo/SemiStaticLights/internal/software"
	"github.com/arigo/SemiStaticLights/internal/volume"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/google/uuid"
)

var (
	// ErrNilProjector is returned by New without a projector.
	ErrNilProjector = errors.New("semistaticlights: projector must not be nil")

	// ErrNilAmbient is returned by New without an ambient sampler.
	ErrNilAmbient = errors.New("semistaticlights: ambient sampler must not be nil")

	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("semistaticlights: pipeline closed")

	// ErrDebugReadbackDisabled is returned by the read-back methods unless
	// the pipeline was created WithDebugReadback(true).
	ErrDebugReadbackDisabled = errors.New("semistaticlights: debug read-back disabled")

	// ErrNoOutput is returned by read-back before the first recomputation.
	ErrNoOutput = errors.New("semistaticlights: no output yet")
)

// Stats describes the last call to ComputeLightBounces.
type Stats struct {
	// Skipped is set when the config was invalid and nothing ran.
	Skipped bool

	// Reallocated is set when volumes were (re)created.
	Reallocated bool

	// Failed is set when the call returned an error. The other fields
	// describe the work done before it.
	Failed bool

	Dispatches int

	Rasterize time.Duration
	Seed      time.Duration
	Propagate time.Duration
	Total     time.Duration
}

// resources are the device objects of one (resolution, cascades) shape.
type resources struct {
	n, cascades int
	gvs         []compute.VolumeID
	towers      [NumViewRays]compute.VolumeID
	scratch     compute.BufferID
	acc         *volume.Accumulator
}

func (r *resources) allocated() bool { return r.acc != nil }

// Pipeline computes the cascaded light-bounce volumes of one directional
// light. Calls are serialized; a Pipeline may be shared between goroutines.
type Pipeline struct {
	mu sync.Mutex

	id uuid.UUID

	dev       compute.Device
	ownDevice bool

	projector  Projector
	rasterizer VoxelRasterizer
	ambient    AmbientSampler

	debugReadback bool

	res              resources
	structureVersion uint64
	generation       uint64
	output           *Output
	stats            Stats
	closed           bool
}

// New creates a pipeline drawing occluders through projector and lighting
// the coarsest cascade with ambient.
//
// The device is chosen in this order: WithDevice, the device registered with
// RegisterDevice, and otherwise a new software device.
func New(projector Projector, ambient AmbientSampler, opts ...Option) (*Pipeline, error) {
	if projector == nil {
		return nil, ErrNilProjector
	}
	if ambient == nil {
		return nil, ErrNilAmbient
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pipeline{
		id:            uuid.New(),
		projector:     projector,
		ambient:       ambient,
		debugReadback: o.debugReadback,
	}

	switch {
	case o.device != nil:
		if err := o.device.Init(); err != nil {
			return nil, fmt.Errorf("semistaticlights: init device %s: %w", o.device.Name(), err)
		}
		p.dev, p.ownDevice = o.device, true
	case RegisteredDevice() != nil:
		p.dev = RegisteredDevice()
	default:
		sw := software.New(o.workers)
		if err := sw.Init(); err != nil {
			return nil, fmt.Errorf("semistaticlights: init software device: %w", err)
		}
		p.dev, p.ownDevice = sw, true
	}

	if o.provider != nil {
		pa, ok := p.dev.(compute.ProviderAware)
		if !ok {
			p.logger().Warn("device cannot share an external GPU device", "device", p.dev.Name())
		} else if err := pa.SetDeviceProvider(o.provider); err != nil {
			p.closeDevice()
			return nil, fmt.Errorf("semistaticlights: share device: %w", err)
		}
	}

	p.logger().Info("pipeline created", "device", p.dev.Name())
	return p, nil
}

// logger tags the current package logger with the pipeline id. It is
// looked up on every call so SetLogger reaches existing pipelines.
func (p *Pipeline) logger() *slog.Logger {
	return Logger().With("pipeline", p.id.String())
}

// ID identifies the pipeline in log records.
func (p *Pipeline) ID() uuid.UUID { return p.id }

// Device returns the compute device the pipeline runs on.
func (p *Pipeline) Device() compute.Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.followRegisteredDevice()
	}
	return p.dev
}

// ComputeLightBounces rebuilds the geometry volumes around cfg.Center and
// propagates ambient light through them into the six lighting towers.
//
// An invalid cfg (see Config.Validate) makes the call a no-op: nothing is
// dispatched, the previous Output stays published and nil is returned.
// Errors from the rasterizer abort the call before any tower is written.
func (p *Pipeline) ComputeLightBounces(ctx context.Context, cfg Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if err := cfg.Validate(); err != nil {
		p.stats = Stats{Skipped: true}
		p.logger().Debug("light bounces skipped", "reason", err)
		return nil
	}
	p.followRegisteredDevice()

	start := time.Now()
	var st Stats
	err := p.recompute(ctx, cfg, &st, start)
	st.Total = time.Since(start)
	st.Failed = err != nil
	p.stats = st
	if err != nil {
		p.logger().Debug("light bounces failed", "err", err, "dispatches", st.Dispatches)
		return err
	}
	p.logger().Debug("light bounces computed",
		"cascades", cfg.NumCascades, "resolution", cfg.GridResolution, "dispatches", st.Dispatches,
		"rasterize", st.Rasterize, "seed", st.Seed, "propagate", st.Propagate, "total", st.Total)
	return nil
}

// recompute runs every stage and publishes the output, filling st as it
// goes so a failed call still reports how far it got.
func (p *Pipeline) recompute(ctx context.Context, cfg Config, st *Stats, start time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := p.acquireRasterizer()
	if err != nil {
		return err
	}

	n, count := cfg.GridResolution, cfg.NumCascades
	realloc, err := p.ensureResources(n, count)
	st.Reallocated = realloc
	if err != nil {
		return fmt.Errorf("semistaticlights: allocate volumes: %w", err)
	}

	cascades := newCascades(cfg)
	builder := geometryVolumeBuilder{dev: p.dev, acc: p.res.acc, scratch: p.res.scratch}
	for i, c := range cascades {
		if err := builder.BuildCascade(ctx, r, c, cfg.CullingMask, p.res.gvs[i]); err != nil {
			return fmt.Errorf("semistaticlights: %w", err)
		}
		st.Dispatches++
	}
	st.Rasterize = time.Since(start)

	seeder := cascadeSeeder{dev: p.dev}
	propagator := lightPropagator{dev: p.dev}
	rot := cascades[0].Rotation
	var rays [NumViewRays]ViewRay
	for _, o := range Orientations {
		t0 := time.Now()
		if err := seeder.Seed(o, n, p.res.gvs); err != nil {
			return fmt.Errorf("semistaticlights: %w", err)
		}
		st.Dispatches += count - 1
		t1 := time.Now()
		st.Seed += t1.Sub(t0)

		_, _, dz := o.Basis()
		fwd := rot.Rotate(dz)
		ambF := p.ambient.Evaluate(fwd.Mul(-1))
		ambB := p.ambient.Evaluate(fwd)
		fi, bi := o.RayIndex(false), o.RayIndex(true)
		if err := propagator.Propagate(o, n, p.res.gvs, p.res.towers[fi], p.res.towers[bi], ambF, ambB); err != nil {
			return fmt.Errorf("semistaticlights: %w", err)
		}
		st.Dispatches += count
		st.Propagate += time.Since(t1)

		rays[fi] = ViewRay{Orientation: o, WorldForward: fwd, Tower: p.res.towers[fi]}
		rays[bi] = ViewRay{Orientation: o, Backward: true, WorldForward: fwd.Mul(-1), Tower: p.res.towers[bi]}
	}

	if err := p.dev.Submit(); err != nil {
		return fmt.Errorf("semistaticlights: submit: %w", err)
	}
	p.expose(cfg, cascades, rays)
	return nil
}

// followRegisteredDevice moves a pipeline that runs on the registered
// device onto its replacement. RegisterDevice closed the old device along
// with its volumes, so they are dropped and reallocated on the next
// recomputation.
func (p *Pipeline) followRegisteredDevice() {
	if p.ownDevice {
		return
	}
	d := RegisteredDevice()
	if d == nil || d == p.dev {
		return
	}
	p.logger().Info("registered device replaced", "previous", p.dev.Name(), "device", d.Name())
	p.dev = d
	p.res = resources{}
	p.output = nil
}

func (p *Pipeline) acquireRasterizer() (VoxelRasterizer, error) {
	if p.rasterizer != nil {
		return p.rasterizer, nil
	}
	r, err := p.projector.AcquireRasterizer()
	if err != nil {
		return nil, fmt.Errorf("semistaticlights: acquire rasterizer: %w", err)
	}
	if r == nil {
		return nil, errors.New("semistaticlights: projector returned a nil rasterizer")
	}
	p.rasterizer = r
	return r, nil
}

// ensureResources makes sure volumes of shape (n, count) exist and are
// still valid on the device, reallocating everything otherwise.
func (p *Pipeline) ensureResources(n, count int) (bool, error) {
	if p.res.allocated() && p.res.n == n && p.res.cascades == count && p.resourcesValid() {
		return false, nil
	}
	if p.res.allocated() {
		p.logger().Info("reallocating volumes",
			"resolution", n, "cascades", count,
			"previousResolution", p.res.n, "previousCascades", p.res.cascades)
	}
	p.releaseResources()
	// Published towers are gone; never expose stale handles.
	p.output = nil

	res := resources{n: n, cascades: count, gvs: make([]compute.VolumeID, count)}
	fail := func(err error) (bool, error) {
		p.res = res
		p.releaseResources()
		return false, err
	}
	for i := range res.gvs {
		id, err := p.dev.CreateVolume(compute.VolumeDesc{
			Label: fmt.Sprintf("geometry_volume_%d", i),
			Width: n, Height: n, Depth: n,
			Format: gputypes.TextureFormatR8Unorm,
		})
		if err != nil {
			return fail(err)
		}
		res.gvs[i] = id
	}
	for i := range res.towers {
		id, err := p.dev.CreateVolume(compute.VolumeDesc{
			Label: fmt.Sprintf("lighting_tower_%d", i),
			Width: n, Height: n, Depth: n * count,
			Format: gputypes.TextureFormatRGBA8Unorm,
		})
		if err != nil {
			return fail(err)
		}
		res.towers[i] = id
	}
	res.acc = volume.NewAccumulator(n)
	scratch, err := p.dev.CreateBuffer(compute.BufferDesc{
		Label: "opacity_accumulation",
		Size:  res.acc.ByteSize(),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fail(err)
	}
	res.scratch = scratch

	p.res = res
	p.structureVersion++
	p.logger().Info("volumes allocated", "resolution", n, "cascades", count, "structureVersion", p.structureVersion)
	return true, nil
}

func (p *Pipeline) resourcesValid() bool {
	for _, id := range p.res.gvs {
		if !p.dev.VolumeValid(id) {
			return false
		}
	}
	for _, id := range p.res.towers {
		if !p.dev.VolumeValid(id) {
			return false
		}
	}
	return true
}

func (p *Pipeline) releaseResources() {
	for _, id := range p.res.gvs {
		if id != compute.InvalidID {
			p.dev.DestroyVolume(id)
		}
	}
	for _, id := range p.res.towers {
		if id != compute.InvalidID {
			p.dev.DestroyVolume(id)
		}
	}
	if p.res.scratch != compute.InvalidID {
		p.dev.DestroyBuffer(p.res.scratch)
	}
	p.res = resources{}
}

func (p *Pipeline) expose(cfg Config, cascades []Cascade, rays [NumViewRays]ViewRay) {
	w2l := cascades[0].WorldToLightLocal()
	perCascade := make([]mgl32.Mat4, len(cascades))
	for i, c := range cascades {
		perCascade[i] = c.WorldToLocal()
	}
	for i := range rays {
		rays[i].WorldToLightLocal = w2l
	}
	p.generation++
	p.output = &Output{
		Generation:          p.generation,
		StructureVersion:    p.structureVersion,
		GridResolution:      cfg.GridResolution,
		NumCascades:         cfg.NumCascades,
		Center:              cfg.Center,
		WorldToLightLocal:   w2l,
		WorldToCascadeLocal: perCascade,
		Rays:                rays,
		Shading:             newShadingParams(cascades[0], cfg.NumCascades),
	}
}

// Output returns a copy of the last published output. ok is false before
// the first successful recomputation, after the volumes were reallocated
// by a call that then failed, and after the registered device the pipeline
// runs on was replaced.
func (p *Pipeline) Output() (out Output, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.followRegisteredDevice()
	}
	if p.output == nil {
		return Output{}, false
	}
	out = *p.output
	out.WorldToCascadeLocal = append([]mgl32.Mat4(nil), p.output.WorldToCascadeLocal...)
	return out, true
}

// Stats returns the statistics of the last ComputeLightBounces call.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// ReadGeometryVolume reads back the geometry volume of a cascade as it was
// left by the last recomputation (seeded for the last orientation).
func (p *Pipeline) ReadGeometryVolume(cascade int) ([]uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.readable(); err != nil {
		return nil, err
	}
	if cascade < 0 || cascade >= len(p.res.gvs) {
		return nil, fmt.Errorf("semistaticlights: cascade %d out of range [0, %d)", cascade, len(p.res.gvs))
	}
	return p.dev.ReadVolume(p.res.gvs[cascade])
}

// ReadTower reads back the lighting tower of view ray ray.
func (p *Pipeline) ReadTower(ray int) ([]uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.readable(); err != nil {
		return nil, err
	}
	if ray < 0 || ray >= NumViewRays {
		return nil, fmt.Errorf("semistaticlights: view ray %d out of range [0, %d)", ray, NumViewRays)
	}
	return p.dev.ReadVolume(p.res.towers[ray])
}

func (p *Pipeline) readable() error {
	if p.closed {
		return ErrClosed
	}
	p.followRegisteredDevice()
	switch {
	case !p.debugReadback:
		return ErrDebugReadbackDisabled
	case p.output == nil:
		return ErrNoOutput
	}
	return nil
}

// Close releases the volumes, returns the rasterizer to the projector and
// closes the device if the pipeline created it. Close is idempotent.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.followRegisteredDevice()
	p.closed = true
	p.releaseResources()
	p.output = nil
	if p.rasterizer != nil {
		p.projector.ReleaseRasterizer(p.rasterizer)
		p.rasterizer = nil
	}
	p.closeDevice()
	p.logger().Info("pipeline closed")
}

func (p *Pipeline) closeDevice() {
	if p.ownDevice {
		p.dev.Close()
	}
}
