package imageio

import (
	"image"

	"vlmd/internal/model"
)

// SigLIP-style normalization used by Gemma 3 vision towers.
var (
	mean = [3]float32{0.5, 0.5, 0.5}
	std  = [3]float32{0.5, 0.5, 0.5}
)

// Preprocess resizes img to size x size, rescales to [0,1], normalizes and
// lays the result out channel-first.
func Preprocess(img image.Image, size int) model.PixelTensor {
	plane := size * size
	out := model.PixelTensor{Channels: 3, Height: size, Width: size, Data: make([]float32, 3*plane)}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return out
	}
	for y := 0; y < size; y++ {
		sy := b.Min.Y + y*b.Dy()/size
		for x := 0; x < size; x++ {
			sx := b.Min.X + x*b.Dx()/size
			r, g, bl, _ := img.At(sx, sy).RGBA()
			px := [3]float32{float32(r>>8) / 255, float32(g>>8) / 255, float32(bl>>8) / 255}
			for c := 0; c < 3; c++ {
				out.Data[c*plane+y*size+x] = (px[c] - mean[c]) / std[c]
			}
		}
	}
	return out
}
