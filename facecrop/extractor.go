package facecrop

import (
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/moodlens/moodlens/vision/transform"
)

// Config holds extraction settings.
type Config struct {
	Workers      int     // concurrent detection workers; <=0 means 4
	Margin       float64 // crop margin as a fraction of the face size
	JPEGQuality  int     // output encoding quality; <=0 means 90
	ShowProgress bool
}

// Summary reports what one extraction run did. NoFace counts input images
// that yielded no detection and therefore no output; they are silently lost
// to the downstream training stage unless this count is surfaced.
type Summary struct {
	Images int
	Faces  int
	NoFace int
	Failed int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d images processed: %d faces extracted, %d without a face, %d failed",
		s.Images, s.Faces, s.NoFace, s.Failed)
}

// Extractor crops the dominant face from every image in a class tree.
type Extractor struct {
	detector Detector
	config   Config
}

// NewExtractor creates an extractor around a detector.
func NewExtractor(detector Detector, config Config) (*Extractor, error) {
	if detector == nil {
		return nil, fmt.Errorf("extractor requires a detector")
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.JPEGQuality <= 0 {
		config.JPEGQuality = 90
	}
	if config.Margin < 0 {
		return nil, fmt.Errorf("margin must be non-negative, got %v", config.Margin)
	}
	return &Extractor{detector: detector, config: config}, nil
}

type job struct {
	inputPath  string
	outputPath string
}

// Run processes every image under inputRoot, writing cropped faces to the
// same class-relative paths under outputRoot. Per-image decode or encode
// failures are counted, not fatal: one bad file must not abort a long run.
func (e *Extractor) Run(inputRoot, outputRoot string) (Summary, error) {
	jobs, err := e.collectJobs(inputRoot, outputRoot)
	if err != nil {
		return Summary{}, err
	}
	if len(jobs) == 0 {
		return Summary{}, fmt.Errorf("no images found under %s", inputRoot)
	}

	var bar *progressbar.ProgressBar
	if e.config.ShowProgress {
		bar = progressbar.NewOptions(len(jobs),
			progressbar.OptionSetDescription("Extracting faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var (
		mu      sync.Mutex
		summary Summary
		wg      sync.WaitGroup
	)
	queue := make(chan job)

	for w := 0; w < e.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				faces, failed := e.processOne(j)

				mu.Lock()
				summary.Images++
				switch {
				case failed:
					summary.Failed++
				case faces == 0:
					summary.NoFace++
				default:
					summary.Faces++
				}
				mu.Unlock()

				if bar != nil {
					bar.Add(1)
				}
			}
		}()
	}

	for _, j := range jobs {
		queue <- j
	}
	close(queue)
	wg.Wait()

	return summary, nil
}

// collectJobs mirrors the class directory layout of inputRoot under
// outputRoot and returns one job per image.
func (e *Extractor) collectJobs(inputRoot, outputRoot string) ([]job, error) {
	info, err := os.Stat(inputRoot)
	if err != nil {
		return nil, fmt.Errorf("input root %s: %w", inputRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input root %s is not a directory", inputRoot)
	}

	entries, err := os.ReadDir(inputRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read input root %s: %w", inputRoot, err)
	}

	var jobs []job
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		className := entry.Name()

		classDir := filepath.Join(inputRoot, className)
		images, err := os.ReadDir(classDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read class directory %s: %w", classDir, err)
		}

		outDir := filepath.Join(outputRoot, className)
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", outDir, err)
		}

		for _, img := range images {
			if img.IsDir() || !isImageFile(img.Name()) {
				continue
			}
			jobs = append(jobs, job{
				inputPath:  filepath.Join(classDir, img.Name()),
				outputPath: filepath.Join(outDir, img.Name()),
			})
		}
	}

	sort.Slice(jobs, func(i, k int) bool { return jobs[i].inputPath < jobs[k].inputPath })
	return jobs, nil
}

// processOne detects, crops and saves the best face of a single image.
// Returns the number of faces written (0 or 1) and whether the image failed.
func (e *Extractor) processOne(j job) (faces int, failed bool) {
	img, err := transform.Decode(j.inputPath)
	if err != nil {
		return 0, true
	}

	detected, err := e.detector.Detect(img)
	if err != nil {
		return 0, true
	}
	if len(detected) == 0 {
		return 0, false
	}

	best := detected[0]
	for _, f := range detected[1:] {
		if f.Size > best.Size {
			best = f
		}
	}

	cropped := cropFace(img, best, e.config.Margin)
	if err := e.saveJPEG(cropped, j.outputPath); err != nil {
		return 0, true
	}
	return 1, false
}

// cropFace cuts the face window plus margin out of img, clamped to the image
// bounds.
func cropFace(img image.Image, face Face, margin float64) image.Image {
	pad := int(float64(face.Size) * margin)
	rect := image.Rect(
		face.X-pad,
		face.Y-pad,
		face.X+face.Size+pad,
		face.Y+face.Size+pad,
	).Intersect(img.Bounds())

	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

func (e *Extractor) saveJPEG(img image.Image, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return jpeg.Encode(file, img, &jpeg.Options{Quality: e.config.JPEGQuality})
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp":
		return true
	}
	return false
}
