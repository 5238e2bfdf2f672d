package onnx

import (
	"os"

	jsoniter "github.com/json-iterator/go"

	"vlmd/internal/registry"
)

const defaultImageSize = 896

type modelConfig struct {
	// EOSTokenID is -1 when not configured.
	EOSTokenID int
	ImageSize  int
}

type generationConfigFile struct {
	EOSTokenID jsoniter.RawMessage `json:"eos_token_id"`
}

type configFile struct {
	VisionConfig struct {
		ImageSize int `json:"image_size"`
	} `json:"vision_config"`
}

// loadModelConfig reads the optional config files. eos_token_id may be a
// number or a list; the first entry wins.
func loadModelConfig(files registry.ModelFiles) (modelConfig, error) {
	cfg := modelConfig{EOSTokenID: -1, ImageSize: defaultImageSize}
	if files.GenerationConfig != "" {
		b, err := os.ReadFile(files.GenerationConfig)
		if err != nil {
			return cfg, err
		}
		var gc generationConfigFile
		if err := jsoniter.Unmarshal(b, &gc); err != nil {
			return cfg, err
		}
		if len(gc.EOSTokenID) > 0 {
			var one int
			var many []int
			if err := jsoniter.Unmarshal(gc.EOSTokenID, &one); err == nil {
				cfg.EOSTokenID = one
			} else if err := jsoniter.Unmarshal(gc.EOSTokenID, &many); err == nil && len(many) > 0 {
				cfg.EOSTokenID = many[0]
			}
		}
	}
	if files.Config != "" {
		b, err := os.ReadFile(files.Config)
		if err != nil {
			return cfg, err
		}
		var c configFile
		if err := jsoniter.Unmarshal(b, &c); err != nil {
			return cfg, err
		}
		if c.VisionConfig.ImageSize > 0 {
			cfg.ImageSize = c.VisionConfig.ImageSize
		}
	}
	return cfg, nil
}
