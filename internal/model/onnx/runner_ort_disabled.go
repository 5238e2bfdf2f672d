//go:build !ORT

package onnx

import "errors"

func newORTRunner(string, string) (runner, error) {
	return nil, errors.New("onnxruntime support not built in (rebuild with -tags ORT)")
}
