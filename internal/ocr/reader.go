// Package ocr reads text off preprocessed plate crops. The engine is treated
// as a black box: it returns raw candidate strings with no length or accuracy
// contract.
package ocr

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// PlateAllowlist restricts recognition to the characters that can appear on
// a plate.
const PlateAllowlist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Reader produces raw candidate strings for one image region.
type Reader interface {
	ReadText(crop gocv.Mat, allowlist string) ([]string, error)
}

// TesseractReader implements Reader with a gosseract client.
type TesseractReader struct {
	client *gosseract.Client
}

// NewTesseractReader builds a reader tuned for plate text: English model,
// single text block, dictionary correction disabled so real registrations
// are not "fixed" into words.
func NewTesseractReader() (*TesseractReader, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("set OCR language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	return &TesseractReader{client: client}, nil
}

// ReadText recognizes the crop and returns the upper-cased whitespace-split
// strings found in it. An empty crop yields no candidates.
func (r *TesseractReader) ReadText(crop gocv.Mat, allowlist string) ([]string, error) {
	if crop.Empty() {
		return nil, nil
	}

	if err := r.client.SetWhitelist(allowlist); err != nil {
		return nil, fmt.Errorf("set OCR allowlist: %w", err)
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, crop)
	if err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	defer buf.Close()

	if err := r.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return nil, fmt.Errorf("set OCR image: %w", err)
	}

	text, err := r.client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	return strings.Fields(strings.ToUpper(text)), nil
}

// Close releases the tesseract client.
func (r *TesseractReader) Close() error {
	return r.client.Close()
}
