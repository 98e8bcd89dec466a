//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/arigo/SemiStaticLights/compute"
	"github.com/arigo/SemiStaticLights/internal/kernels"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// kernelSpec describes the shader module and bind group layout of a kernel.
// Binding 0 is always the Params uniform.
type kernelSpec struct {
	kernel   compute.Kernel
	source   string
	bindings []gputypes.BufferBindingType
}

var kernelSpecs = []kernelSpec{
	{
		kernel: compute.KernelPackOpacity,
		source: kernels.PackOpacityWGSL,
		bindings: []gputypes.BufferBindingType{
			gputypes.BufferBindingTypeUniform,
			gputypes.BufferBindingTypeReadOnlyStorage, // accumulation
			gputypes.BufferBindingTypeStorage,         // geometry
		},
	},
	{
		kernel: compute.KernelDirectionalCopy,
		source: kernels.DirectionalCopyWGSL,
		bindings: []gputypes.BufferBindingType{
			gputypes.BufferBindingTypeUniform,
			gputypes.BufferBindingTypeReadOnlyStorage, // fine
			gputypes.BufferBindingTypeStorage,         // coarse
		},
	},
	{
		kernel: compute.KernelPropagateFromAmbient,
		source: kernels.PropagateAmbientWGSL,
		bindings: []gputypes.BufferBindingType{
			gputypes.BufferBindingTypeUniform,
			gputypes.BufferBindingTypeReadOnlyStorage, // geometry
			gputypes.BufferBindingTypeStorage,         // forward tower
			gputypes.BufferBindingTypeStorage,         // backward tower
		},
	},
	{
		kernel: compute.KernelPropagateFromUpper,
		source: kernels.PropagateUpperWGSL,
		bindings: []gputypes.BufferBindingType{
			gputypes.BufferBindingTypeUniform,
			gputypes.BufferBindingTypeReadOnlyStorage,
			gputypes.BufferBindingTypeStorage,
			gputypes.BufferBindingTypeStorage,
		},
	},
}

// kernelPipeline holds the compiled objects of one kernel.
type kernelPipeline struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

func (d *Device) createPipelines() error {
	d.pipelines = make(map[compute.Kernel]*kernelPipeline, len(kernelSpecs))
	for _, spec := range kernelSpecs {
		kp := &kernelPipeline{}
		// Register before creating so destroyPipelines cleans up partial work.
		d.pipelines[spec.kernel] = kp
		name := spec.kernel.String()

		shader, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  name,
			Source: hal.ShaderSource{WGSL: spec.source},
		})
		if err != nil {
			return fmt.Errorf("compile %s shader: %w", name, err)
		}
		kp.shader = shader

		entries := make([]gputypes.BindGroupLayoutEntry, len(spec.bindings))
		for i, typ := range spec.bindings {
			entries[i] = gputypes.BindGroupLayoutEntry{
				Binding:    uint32(i), //nolint:gosec // at most four bindings
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: typ},
			}
		}
		bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   name + "_bind_layout",
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("create %s bind group layout: %w", name, err)
		}
		kp.bindLayout = bindLayout

		pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label: name + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{kp.bindLayout},
		})
		if err != nil {
			return fmt.Errorf("create %s pipeline layout: %w", name, err)
		}
		kp.pipeLayout = pipeLayout

		pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label: name + "_pipeline", Layout: kp.pipeLayout,
			Compute: hal.ComputeState{Module: kp.shader, EntryPoint: kernels.EntryPoint},
		})
		if err != nil {
			return fmt.Errorf("create %s compute pipeline: %w", name, err)
		}
		kp.pipeline = pipeline
	}
	return nil
}

func (d *Device) destroyPipelines() {
	if d.device == nil {
		return
	}
	for _, kp := range d.pipelines {
		if kp.pipeline != nil {
			d.device.DestroyComputePipeline(kp.pipeline)
		}
		if kp.pipeLayout != nil {
			d.device.DestroyPipelineLayout(kp.pipeLayout)
		}
		if kp.bindLayout != nil {
			d.device.DestroyBindGroupLayout(kp.bindLayout)
		}
		if kp.shader != nil {
			d.device.DestroyShaderModule(kp.shader)
		}
	}
	d.pipelines = nil
}
