package onnx

import (
	"fmt"
	"os"

	"github.com/advancedclimatesystems/gonnx"
	"gorgonia.org/tensor"
)

// goRunner executes the graph with the pure Go gonnx interpreter.
type goRunner struct {
	model  *gonnx.Model
	inputs []string
}

func newGoRunner(path string) (runner, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := gonnx.NewModelFromBytes(b)
	if err != nil {
		return nil, err
	}
	return &goRunner{model: m, inputs: m.InputNames()}, nil
}

func (r *goRunner) inputNames() []string { return r.inputs }

func (r *goRunner) close() error { return nil }

func (r *goRunner) run(s step) ([]float32, error) {
	n := len(s.ids)
	in := map[string]tensor.Tensor{}
	for _, name := range r.inputs {
		switch name {
		case inputIDs:
			in[name] = tensor.New(tensor.WithShape(1, n), tensor.WithBacking(s.ids))
		case inputMask:
			in[name] = tensor.New(tensor.WithShape(1, n), tensor.WithBacking(s.mask))
		case inputPixelValues:
			data, shape, err := pixelBacking(s.pixels)
			if err != nil {
				return nil, err
			}
			if data == nil {
				// no images: an empty batch of the declared layout
				data, shape = []float32{}, []int{0, 3, 1, 1}
			}
			in[name] = tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
		default:
			return nil, fmt.Errorf("input %s not recognized", name)
		}
	}
	out, err := r.model.Run(in)
	if err != nil {
		return nil, err
	}
	logits, ok := out[outputLogits]
	if !ok {
		return nil, fmt.Errorf("graph has no %q output", outputLogits)
	}
	data, ok := logits.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("logits: unexpected dtype %v", logits.Dtype())
	}
	return lastRow(data, logits.Shape())
}
