// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"

	vk "github.com/devblok/vulkan"

	"github.com/okapi3d/okapi/rhi"
)

type descriptorPool struct {
	raw vk.DescriptorPool
}

type descriptorSet struct {
	raw vk.DescriptorSet
}

// CreateDescriptorPool implements rhi.Device. The pool is sized for
// a whole renderpack and replaced on reload.
func (d *Device) CreateDescriptorPool(size rhi.DescriptorPoolSize) (rhi.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{{
		Type:            vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: size.SampledImages,
	}, {
		Type:            vk.DescriptorTypeSampler,
		DescriptorCount: size.Samplers,
	}, {
		Type:            vk.DescriptorTypeUniformBuffer,
		DescriptorCount: size.UniformBuffers,
	}}

	maxSets := size.SampledImages + size.Samplers + size.UniformBuffers
	if maxSets == 0 {
		maxSets = 1
	}
	dpci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(d.logicalDevice, &dpci, nil, &pool)); err != nil {
		return nil, errors.New("vk.CreateDescriptorPool(): " + err.Error())
	}
	return &descriptorPool{raw: pool}, nil
}

// CreateDescriptorSets implements rhi.Device, allocating one set per
// layout the interface declares.
func (d *Device) CreateDescriptorSets(iface rhi.PipelineInterface, pool rhi.DescriptorPool) ([]rhi.DescriptorSet, error) {
	vkIface, ok := iface.(*pipelineInterface)
	if !ok {
		return nil, errors.New("pipeline interface does not belong to this device")
	}
	vkPool, ok := pool.(*descriptorPool)
	if !ok {
		return nil, errors.New("descriptor pool does not belong to this device")
	}
	if len(vkIface.setLayouts) == 0 {
		return nil, nil
	}

	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     vkPool.raw,
		DescriptorSetCount: uint32(len(vkIface.setLayouts)),
		PSetLayouts:        vkIface.setLayouts,
	}
	raw := make([]vk.DescriptorSet, len(vkIface.setLayouts))
	if err := vk.Error(vk.AllocateDescriptorSets(d.logicalDevice, &dsai, &raw[0])); err != nil {
		return nil, errors.New("vk.AllocateDescriptorSets(): " + err.Error())
	}

	sets := make([]rhi.DescriptorSet, len(raw))
	for idx := range raw {
		sets[idx] = &descriptorSet{raw: raw[idx]}
	}
	return sets, nil
}

// UpdateDescriptorSets implements rhi.Device.
func (d *Device) UpdateDescriptorSets(writes []rhi.DescriptorSetWrite) error {
	var vkWrites []vk.WriteDescriptorSet
	for _, write := range writes {
		set, ok := write.Set.(*descriptorSet)
		if !ok {
			return errors.New("descriptor set does not belong to this device")
		}

		vkWrite := vk.WriteDescriptorSet{
			SType:          vk.StructureTypeWriteDescriptorSet,
			DstSet:         set.raw,
			DstBinding:     write.Binding,
			DescriptorType: vkDescriptorType(write.Type),
		}
		for _, imageInfo := range write.Images {
			img, ok := imageInfo.Image.(*image)
			if !ok {
				return errors.New("image does not belong to this device")
			}
			info := vk.DescriptorImageInfo{
				ImageView:   img.view,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}
			if imageInfo.Sampler != nil {
				smp, ok := imageInfo.Sampler.(*sampler)
				if !ok {
					return errors.New("sampler does not belong to this device")
				}
				info.Sampler = smp.raw
			}
			vkWrite.PImageInfo = append(vkWrite.PImageInfo, info)
		}
		for _, bufferInfo := range write.Buffers {
			buf, ok := bufferInfo.Buffer.(*buffer)
			if !ok {
				return errors.New("buffer does not belong to this device")
			}
			vkWrite.PBufferInfo = append(vkWrite.PBufferInfo, vk.DescriptorBufferInfo{
				Buffer: buf.raw,
				Offset: 0,
				Range:  vk.DeviceSize(buf.size),
			})
		}
		vkWrite.DescriptorCount = uint32(len(vkWrite.PImageInfo) + len(vkWrite.PBufferInfo))
		if vkWrite.DescriptorCount == 0 {
			continue
		}
		vkWrites = append(vkWrites, vkWrite)
	}
	if len(vkWrites) == 0 {
		return nil
	}
	vk.UpdateDescriptorSets(d.logicalDevice, uint32(len(vkWrites)), vkWrites, 0, nil)
	return nil
}
