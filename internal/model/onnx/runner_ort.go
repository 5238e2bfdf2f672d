//go:build ORT

package onnx

import (
	"errors"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// ortRunner executes the graph with onnxruntime.
type ortRunner struct {
	session *ort.DynamicAdvancedSession
	inputs  []string
}

func newORTRunner(path, libraryPath string) (runner, error) {
	if !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, err
		}
	}
	inputs, _, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(inputs))
	for _, v := range inputs {
		names = append(names, v.Name)
	}
	session, err := ort.NewDynamicAdvancedSession(path, names, []string{outputLogits}, nil)
	if err != nil {
		return nil, err
	}
	return &ortRunner{session: session, inputs: names}, nil
}

func (r *ortRunner) inputNames() []string { return r.inputs }

func (r *ortRunner) close() error {
	return errors.Join(r.session.Destroy(), ort.DestroyEnvironment())
}

func (r *ortRunner) run(s step) (logits []float32, err error) {
	n := int64(len(s.ids))
	values := make([]ort.Value, 0, len(r.inputs))
	defer func() {
		for _, v := range values {
			err = errors.Join(err, v.Destroy())
		}
	}()
	for _, name := range r.inputs {
		var v ort.Value
		var terr error
		switch name {
		case inputIDs:
			v, terr = ort.NewTensor(ort.NewShape(1, n), s.ids)
		case inputMask:
			v, terr = ort.NewTensor(ort.NewShape(1, n), s.mask)
		case inputPixelValues:
			data, shape, perr := pixelBacking(s.pixels)
			if perr != nil {
				return nil, perr
			}
			if data == nil {
				data, shape = []float32{}, []int{0, 3, 1, 1}
			}
			dims := make([]int64, len(shape))
			for i, d := range shape {
				dims[i] = int64(d)
			}
			v, terr = ort.NewTensor(ort.NewShape(dims...), data)
		default:
			return nil, fmt.Errorf("input %s not recognized", name)
		}
		if terr != nil {
			return nil, terr
		}
		values = append(values, v)
	}

	outputs := []ort.Value{nil}
	if err := r.session.Run(values, outputs); err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, outputs[0].Destroy()) }()
	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("logits: unexpected output type %T", outputs[0])
	}
	shape := t.GetShape()
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return lastRow(t.GetData(), dims)
}
