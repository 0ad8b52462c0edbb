package recognize

import "image"

// toCHW resizes an image to targetW x targetH and lays it out as a
// normalized [3][H][W] float32 tensor: pixel = (value - mean) / std.
func toCHW(img image.Image, targetW, targetH int, mean, std float32) []float32 {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	data := make([]float32, 3*targetH*targetW)
	plane := targetH * targetW

	for y := 0; y < targetH; y++ {
		srcY := bounds.Min.Y + y*srcH/targetH
		for x := 0; x < targetW; x++ {
			srcX := bounds.Min.X + x*srcW/targetW
			r, g, b, _ := img.At(srcX, srcY).RGBA()

			idx := y*targetW + x
			data[idx] = (float32(r>>8) - mean) / std
			data[plane+idx] = (float32(g>>8) - mean) / std
			data[2*plane+idx] = (float32(b>>8) - mean) / std
		}
	}

	return data
}

// cropFace cuts the detected box out of the frame with 10% padding on
// each side. Returns nil when the box collapses to nothing inside the
// image bounds.
func cropFace(img image.Image, box [4]float32) image.Image {
	bounds := img.Bounds()

	x1, y1 := int(box[0]), int(box[1])
	x2, y2 := int(box[2]), int(box[3])

	padW := (x2 - x1) / 10
	padH := (y2 - y1) / 10
	x1, y1 = x1-padW, y1-padH
	x2, y2 = x2+padW, y2+padH

	x1 = clampInt(x1, bounds.Min.X, bounds.Max.X)
	y1 = clampInt(y1, bounds.Min.Y, bounds.Max.Y)
	x2 = clampInt(x2, bounds.Min.X, bounds.Max.X)
	y2 = clampInt(y2, bounds.Min.Y, bounds.Max.Y)

	if x2-x1 <= 0 || y2-y1 <= 0 {
		return nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			crop.Set(x-x1, y-y1, img.At(x, y))
		}
	}
	return crop
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
