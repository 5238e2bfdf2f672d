package onnx

import (
	"fmt"

	"vlmd/internal/model"
)

// Graph input and output names.
const (
	inputIDs         = "input_ids"
	inputMask        = "attention_mask"
	inputPixelValues = "pixel_values"
	outputLogits     = "logits"
)

type step struct {
	ids    []int64
	mask   []int64
	pixels []model.PixelTensor
}

// runner executes the graph for one step and returns the last position's logits.
type runner interface {
	run(s step) ([]float32, error)
	inputNames() []string
	close() error
}

// pixelBacking concatenates images into one [n, c, h, w] buffer.
func pixelBacking(pixels []model.PixelTensor) ([]float32, []int, error) {
	if len(pixels) == 0 {
		return nil, nil, nil
	}
	p0 := pixels[0]
	data := make([]float32, 0, len(pixels)*len(p0.Data))
	for i, p := range pixels {
		if p.Channels != p0.Channels || p.Height != p0.Height || p.Width != p0.Width {
			return nil, nil, fmt.Errorf("pixel tensor %d has a different shape", i)
		}
		data = append(data, p.Data...)
	}
	return data, []int{len(pixels), p0.Channels, p0.Height, p0.Width}, nil
}

func lastRow(data []float32, shape []int) ([]float32, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("logits: scalar output")
	}
	vocab := shape[len(shape)-1]
	if vocab <= 0 || len(data) < vocab {
		return nil, fmt.Errorf("logits: bad shape %v", shape)
	}
	out := make([]float32, vocab)
	copy(out, data[len(data)-vocab:])
	return out, nil
}
