package vision

import (
	"image"
	"image/draw"
)

// per-channel (pixel - mean) / std normalization of each model
var (
	detMean   = [3]float32{127.5, 127.5, 127.5}
	detStd    = [3]float32{128, 128, 128}
	embedMean = [3]float32{127.5, 127.5, 127.5}
	embedStd  = [3]float32{127.5, 127.5, 127.5}
)

// toCHW resizes img to w x h (nearest neighbour) and lays it out as
// normalized planar RGB.
func toCHW(img image.Image, w, h int, mean, std [3]float32) []float32 {
	src := img.Bounds()
	sw, sh := src.Dx(), src.Dy()
	plane := w * h
	out := make([]float32, 3*plane)
	if sw == 0 || sh == 0 {
		return out
	}

	for y := 0; y < h; y++ {
		sy := src.Min.Y + y*sh/h
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(src.Min.X+x*sw/w, sy).RGBA()
			i := y*w + x
			out[i] = (float32(r>>8) - mean[0]) / std[0]
			out[plane+i] = (float32(g>>8) - mean[1]) / std[1]
			out[2*plane+i] = (float32(b>>8) - mean[2]) / std[2]
		}
	}
	return out
}

// cropFace cuts the box out of img with 10% padding per side, clamped to
// the image. It returns nil for an empty box.
func cropFace(img image.Image, box [4]float32) image.Image {
	r := image.Rect(int(box[0]), int(box[1]), int(box[2]), int(box[3])).Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	padX, padY := r.Dx()/10, r.Dy()/10
	r = image.Rect(r.Min.X-padX, r.Min.Y-padY, r.Max.X+padX, r.Max.Y+padY).Intersect(img.Bounds())

	crop := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(crop, crop.Bounds(), img, r.Min, draw.Src)
	return crop
}
