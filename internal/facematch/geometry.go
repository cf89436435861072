package facematch

import "image"

// ScaleBBox maps a bbox [x1, y1, x2, y2] detected on a frame downscaled by
// factor back to full-frame pixel coordinates.
func ScaleBBox(bbox []float64, factor float64) []float64 {
	if len(bbox) != 4 || factor <= 0 || factor == 1 {
		return bbox
	}
	inv := 1 / factor
	return []float64{bbox[0] * inv, bbox[1] * inv, bbox[2] * inv, bbox[3] * inv}
}

// BBoxRect converts a pixel bbox [x1, y1, x2, y2] into a rectangle clamped to bounds.
// Invalid input yields an empty rectangle.
func BBoxRect(bbox []float64, bounds image.Rectangle) image.Rectangle {
	if len(bbox) != 4 {
		return image.Rectangle{}
	}
	r := image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3]))
	return r.Intersect(bounds)
}
