package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// PreprocessPlate prepares a plate crop for OCR: grayscale, light Gaussian
// blur, then histogram equalization. The caller owns the returned mat.
func PreprocessPlate(crop gocv.Mat) gocv.Mat {
	out := gocv.NewMat()
	if crop.Empty() {
		return out
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(crop, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(3, 3), 0, 0, gocv.BorderDefault)

	gocv.EqualizeHist(blurred, &out)
	return out
}

// CropRegion extracts a copy of the region from the frame, clamped to the
// frame bounds. The caller owns the returned mat.
func CropRegion(frame gocv.Mat, region image.Rectangle) gocv.Mat {
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	region = region.Intersect(bounds)
	if region.Empty() {
		return gocv.NewMat()
	}
	view := frame.Region(region)
	defer view.Close()
	return view.Clone()
}
