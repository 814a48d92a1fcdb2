// Package facecrop implements the face-extraction preprocessing stage: it
// walks a directory-per-class image tree, detects the dominant face in each
// image and writes the cropped face to a mirrored output tree.
package facecrop

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// Face is one detected face in image coordinates. X, Y is the top-left corner
// of the square detection window.
type Face struct {
	X       int
	Y       int
	Size    int
	Quality float32
}

// Detector finds faces in an image. Implementations must be safe for
// concurrent use; the extractor calls Detect from multiple workers.
type Detector interface {
	Detect(img image.Image) ([]Face, error)
}

// PigoDetector detects faces with the pigo pixel-intensity cascade classifier.
type PigoDetector struct {
	classifier *pigo.Pigo
	minSize    int
	maxSize    int
	minQuality float32
}

// NewPigoDetector loads a binary pigo cascade from cascadePath. Detections
// scoring below minQuality are discarded; 5.0 is a reasonable default.
func NewPigoDetector(cascadePath string, minQuality float32) (*PigoDetector, error) {
	cascade, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file %s: %w", cascadePath, err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade %s: %w", cascadePath, err)
	}

	return &PigoDetector{
		classifier: classifier,
		minSize:    40,
		maxSize:    1200,
		minQuality: minQuality,
	}, nil
}

// Detect runs the cascade over the image and returns the clustered detections
// that clear the quality threshold.
func (d *PigoDetector) Detect(img image.Image) ([]Face, error) {
	bounds := img.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	if rows < d.minSize || cols < d.minSize {
		return nil, nil
	}

	pixels := pigo.RgbToGrayscale(img)

	maxSize := d.maxSize
	if rows < maxSize {
		maxSize = rows
	}
	if cols < maxSize {
		maxSize = cols
	}

	params := pigo.CascadeParams{
		MinSize:     d.minSize,
		MaxSize:     maxSize,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	detections := d.classifier.RunCascade(params, 0.0)
	detections = d.classifier.ClusterDetections(detections, 0.2)

	var faces []Face
	for _, det := range detections {
		if det.Q < d.minQuality {
			continue
		}
		faces = append(faces, Face{
			X:       det.Col - det.Scale/2,
			Y:       det.Row - det.Scale/2,
			Size:    det.Scale,
			Quality: det.Q,
		})
	}
	return faces, nil
}
