// Package transform provides the image preprocessing pipelines that turn raw
// face crops into fixed-size normalized tensors. Two pipelines exist: an
// augmenting one for the training partition and a deterministic one for the
// validation and test partitions. Both produce CHW Float32 tensors of the same
// shape and apply the same per-channel normalization constants.
package transform

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/moodlens/moodlens/tensor"
)

// DefaultSize is the spatial size the pipelines produce when none is configured.
const DefaultSize = 224

// Per-channel normalization constants shared by both pipeline variants. These
// match the statistics the pretrained backbone was trained with.
var (
	meanRGB = [3]float32{0.485, 0.456, 0.406}
	stdRGB  = [3]float32{0.229, 0.224, 0.225}
)

// Pipeline maps a decoded image to a CHW Float32 tensor of fixed shape.
type Pipeline interface {
	Apply(img image.Image) (*tensor.Tensor, error)
	OutputShape() []int
}

// Decode reads and decodes an image file. JPEG, PNG and BMP are supported.
func Decode(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// Eval is the deterministic pipeline: resize to a fixed square and normalize.
type Eval struct {
	size int
}

// NewEval creates the deterministic resize+normalize pipeline.
func NewEval(size int) *Eval {
	if size <= 0 {
		size = DefaultSize
	}
	return &Eval{size: size}
}

// OutputShape returns the CHW shape every Apply call produces.
func (e *Eval) OutputShape() []int {
	return []int{3, e.size, e.size}
}

// Apply resizes the image to size x size and normalizes it.
func (e *Eval) Apply(img image.Image) (*tensor.Tensor, error) {
	if img == nil {
		return nil, fmt.Errorf("cannot transform nil image")
	}

	resized := image.NewRGBA(image.Rect(0, 0, e.size, e.size))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	return normalizeCHW(resized, e.size, [3]float32{1, 1, 1})
}

// Augment is the training pipeline: random horizontal flip, rotation, affine
// translation and color jitter, followed by the same resize+normalize as Eval.
type Augment struct {
	size         int
	maxRotate    float64 // radians
	maxTranslate float64 // fraction of the output size
	jitter       float32 // relative per-channel gain range

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAugment creates the augmenting pipeline. A zero seed leaves the random
// source time-based, matching the unseeded legacy behavior.
func NewAugment(size int, seed int64) *Augment {
	if size <= 0 {
		size = DefaultSize
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Augment{
		size:         size,
		maxRotate:    10 * math.Pi / 180,
		maxTranslate: 0.05,
		jitter:       0.2,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// OutputShape returns the CHW shape every Apply call produces. It is identical
// to the deterministic pipeline's shape for the same size.
func (a *Augment) OutputShape() []int {
	return []int{3, a.size, a.size}
}

// Apply augments, resizes and normalizes the image.
func (a *Augment) Apply(img image.Image) (*tensor.Tensor, error) {
	if img == nil {
		return nil, fmt.Errorf("cannot transform nil image")
	}

	a.mu.Lock()
	flip := a.rng.Float64() < 0.5
	angle := (a.rng.Float64()*2 - 1) * a.maxRotate
	tx := (a.rng.Float64()*2 - 1) * a.maxTranslate * float64(a.size)
	ty := (a.rng.Float64()*2 - 1) * a.maxTranslate * float64(a.size)
	var gains [3]float32
	for c := range gains {
		gains[c] = 1 + (a.rng.Float32()*2-1)*a.jitter
	}
	a.mu.Unlock()

	// Scale to the working size first so the affine parameters are expressed
	// in output pixels.
	scaled := image.NewRGBA(image.Rect(0, 0, a.size, a.size))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	// dst = R(angle) * F(flip) * (p - c) + c + t
	cos, sin := math.Cos(angle), math.Sin(angle)
	fx := 1.0
	if flip {
		fx = -1.0
	}
	center := float64(a.size) / 2
	l00, l01 := cos*fx, -sin
	l10, l11 := sin*fx, cos
	offX := center + tx - (l00*center + l01*center)
	offY := center + ty - (l10*center + l11*center)

	warped := image.NewRGBA(image.Rect(0, 0, a.size, a.size))
	matrix := f64.Aff3{l00, l01, offX, l10, l11, offY}
	draw.ApproxBiLinear.Transform(warped, matrix, scaled, scaled.Bounds(), draw.Src, nil)

	return normalizeCHW(warped, a.size, gains)
}

// normalizeCHW converts an RGBA image to a [3, size, size] Float32 tensor,
// applying per-channel gain (color jitter) before the fixed normalization.
func normalizeCHW(img *image.RGBA, size int, gains [3]float32) (*tensor.Tensor, error) {
	plane := size * size
	data := make([]float32, 3*plane)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			base := img.PixOffset(x, y)
			idx := y*size + x
			for c := 0; c < 3; c++ {
				v := float32(img.Pix[base+c]) / 255 * gains[c]
				if v > 1 {
					v = 1
				}
				data[c*plane+idx] = (v - meanRGB[c]) / stdRGB[c]
			}
		}
	}

	return tensor.NewTensor([]int{3, size, size}, tensor.Float32, data)
}
