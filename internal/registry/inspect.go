// Package registry locates model files on disk and fetches them from the
// Hugging Face hub.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vlmd/internal/common/fsutil"
	"vlmd/internal/model"
)

// Well-known file names in a model directory.
const (
	TokenizerFile        = "tokenizer.json"
	GenerationConfigFile = "generation_config.json"
	ConfigFile           = "config.json"
	preferredONNX        = "model.onnx"
)

// ModelFiles lists the files of a model directory as absolute paths. Optional
// files are empty when absent.
type ModelFiles struct {
	Dir              string
	Name             string
	ONNX             string
	Tokenizer        string
	GenerationConfig string
	Config           string
}

// Inspect validates dir as a model directory. The graph is looked up in dir and
// then in dir/onnx; model.onnx wins over other names. Missing files are
// reported as model.StartupError.
func Inspect(dir string) (ModelFiles, error) {
	if strings.TrimSpace(dir) == "" {
		return ModelFiles{}, model.Unavailable("no model directory configured", nil)
	}
	abs, err := fsutil.ResolveDir(dir)
	if err != nil {
		return ModelFiles{}, model.Unavailable("resolve model dir", err)
	}
	if _, err := os.ReadDir(abs); err != nil {
		return ModelFiles{}, model.Unavailable("read model dir", err)
	}
	files := ModelFiles{Dir: abs, Name: filepath.Base(abs)}

	for _, sub := range []string{abs, filepath.Join(abs, "onnx")} {
		if files.ONNX, err = findONNX(sub); err != nil {
			return ModelFiles{}, model.Unavailable("scan "+sub, err)
		}
		if files.ONNX != "" {
			break
		}
	}
	if files.ONNX == "" {
		return ModelFiles{}, model.Unavailable(fmt.Sprintf("no .onnx graph in %s", abs), nil)
	}
	if p := filepath.Join(abs, TokenizerFile); fsutil.PathExists(p) {
		files.Tokenizer = p
	} else {
		return ModelFiles{}, model.Unavailable(fmt.Sprintf("missing %s in %s", TokenizerFile, abs), nil)
	}
	if p := filepath.Join(abs, GenerationConfigFile); fsutil.PathExists(p) {
		files.GenerationConfig = p
	}
	if p := filepath.Join(abs, ConfigFile); fsutil.PathExists(p) {
		files.Config = p
	}
	return files, nil
}

func findONNX(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var found []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".onnx") {
			continue
		}
		if name == preferredONNX {
			return filepath.Join(dir, name), nil
		}
		found = append(found, name)
	}
	if len(found) == 0 {
		return "", nil
	}
	if len(found) > 1 {
		sort.Strings(found)
		return "", fmt.Errorf("multiple .onnx files, expected %s: %s", preferredONNX, strings.Join(found, " "))
	}
	return filepath.Join(dir, found[0]), nil
}
