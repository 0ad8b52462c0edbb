package recognize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facepos/internal/config"
	"github.com/your-org/facepos/internal/observability"
	"github.com/your-org/facepos/internal/signature"
)

const (
	detInputSize = 320
	embInputSize = 112
	embDim       = 128
)

// detection strides and anchors-per-cell for the SCRFD-style detector.
var detStrides = []int{8, 16, 32}

const anchorsPerCell = 2

// ONNXExtractor implements Extractor with an SCRFD face detector and a
// MobileFaceNet embedder running under ONNX Runtime. The two sessions
// are loaded once; Initialize is safe to call repeatedly.
type ONNXExtractor struct {
	modelsDir    string
	detThreshold float32

	once    sync.Once
	initErr error

	detSession *ort.AdvancedSession
	detInput   *ort.Tensor[float32]
	detOutputs []*ort.Tensor[float32] // scores then bboxes, per stride

	embSession *ort.AdvancedSession
	embInput   *ort.Tensor[float32]
	embOutput  *ort.Tensor[float32]
}

func NewONNXExtractor(cfg config.VisionConfig) *ONNXExtractor {
	return &ONNXExtractor{
		modelsDir:    cfg.ModelsDir,
		detThreshold: float32(cfg.DetectionThreshold),
	}
}

// Initialize loads both model sessions. The first error is remembered
// and returned on every subsequent call.
func (e *ONNXExtractor) Initialize(ctx context.Context) error {
	e.once.Do(func() {
		e.initErr = e.load()
	})
	return e.initErr
}

func (e *ONNXExtractor) load() error {
	detPath := filepath.Join(e.modelsDir, "det_500m.onnx")
	embPath := filepath.Join(e.modelsDir, "rec_mbf128.onnx")

	slog.Info("loading face detection model", "path", detPath)
	if err := e.loadDetector(detPath); err != nil {
		return fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading face embedding model", "path", embPath)
	if err := e.loadEmbedder(embPath); err != nil {
		e.closeDetector()
		return fmt.Errorf("load embedder: %w", err)
	}

	slog.Info("feature extractor ready", "signature_dim", embDim)
	return nil
}

func (e *ONNXExtractor) loadDetector(path string) error {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, detInputSize, detInputSize))
	if err != nil {
		return fmt.Errorf("detector input tensor: %w", err)
	}

	var names []string
	var tensors []*ort.Tensor[float32]
	var values []ort.Value

	fail := func(err error) error {
		input.Destroy()
		for _, t := range tensors {
			t.Destroy()
		}
		return err
	}

	// One score and one bbox output per stride. Row count per stride is
	// (side/stride)^2 cells times two anchors.
	for _, kind := range []string{"score", "bbox"} {
		cols := int64(1)
		if kind == "bbox" {
			cols = 4
		}
		for _, s := range detStrides {
			side := detInputSize / s
			rows := int64(side * side * anchorsPerCell)
			t, err := ort.NewEmptyTensor[float32](ort.NewShape(rows, cols))
			if err != nil {
				return fail(fmt.Errorf("detector output tensor %s_%d: %w", kind, s, err))
			}
			names = append(names, fmt.Sprintf("%s_%d", kind, s))
			tensors = append(tensors, t)
			values = append(values, t)
		}
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{"input.1"}, names, []ort.Value{input}, values, nil)
	if err != nil {
		return fail(fmt.Errorf("detector session: %w", err))
	}

	e.detSession = session
	e.detInput = input
	e.detOutputs = tensors
	return nil
}

func (e *ONNXExtractor) loadEmbedder(path string) error {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, embInputSize, embInputSize))
	if err != nil {
		return fmt.Errorf("embedder input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, embDim))
	if err != nil {
		input.Destroy()
		return fmt.Errorf("embedder output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{"input.1"}, []string{"embedding"},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return fmt.Errorf("embedder session: %w", err)
	}

	e.embSession = session
	e.embInput = input
	e.embOutput = output
	return nil
}

// Detect finds the best-confidence face in a JPEG frame and returns its
// signature. Multiple faces are not disambiguated; only the strongest
// detection is evaluated.
func (e *ONNXExtractor) Detect(frame []byte) (signature.Signature, bool, error) {
	if e.detSession == nil {
		return nil, false, fmt.Errorf("extractor not initialized")
	}

	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		img, _, err = image.Decode(bytes.NewReader(frame))
		if err != nil {
			return nil, false, fmt.Errorf("decode frame: %w", err)
		}
	}

	start := time.Now()
	face, found, err := e.detectBest(img)
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	crop := cropFace(img, face.box)
	if crop == nil {
		return nil, false, nil
	}

	start = time.Now()
	sig, err := e.embed(crop)
	observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, false, fmt.Errorf("embed face: %w", err)
	}
	return sig, true, nil
}

type detection struct {
	box  [4]float32
	conf float32
}

// detectBest runs the detector and keeps only the highest-scoring face.
func (e *ONNXExtractor) detectBest(img image.Image) (detection, bool, error) {
	copy(e.detInput.GetData(), toCHW(img, detInputSize, detInputSize, 127.5, 128.0))

	if err := e.detSession.Run(); err != nil {
		return detection{}, false, fmt.Errorf("run detector: %w", err)
	}

	bounds := img.Bounds()
	scaleW := float32(bounds.Dx()) / detInputSize
	scaleH := float32(bounds.Dy()) / detInputSize

	var best detection
	found := false

	for si, stride := range detStrides {
		scores := e.detOutputs[si].GetData()
		boxes := e.detOutputs[si+len(detStrides)].GetData()
		side := detInputSize / stride

		idx := 0
		for cy := 0; cy < side; cy++ {
			for cx := 0; cx < side; cx++ {
				for a := 0; a < anchorsPerCell; a++ {
					score := scores[idx]
					if score >= e.detThreshold && (!found || score > best.conf) {
						// Anchor-centred distance decode, scaled back to
						// source pixels.
						ax := float32(cx * stride)
						ay := float32(cy * stride)
						st := float32(stride)
						best = detection{
							box: [4]float32{
								(ax - boxes[idx*4+0]*st) * scaleW,
								(ay - boxes[idx*4+1]*st) * scaleH,
								(ax + boxes[idx*4+2]*st) * scaleW,
								(ay + boxes[idx*4+3]*st) * scaleH,
							},
							conf: score,
						}
						found = true
					}
					idx++
				}
			}
		}
	}

	return best, found, nil
}

func (e *ONNXExtractor) embed(face image.Image) (signature.Signature, error) {
	copy(e.embInput.GetData(), toCHW(face, embInputSize, embInputSize, 127.5, 127.5))

	if err := e.embSession.Run(); err != nil {
		return nil, fmt.Errorf("run embedder: %w", err)
	}

	sig := make(signature.Signature, embDim)
	copy(sig, e.embOutput.GetData())
	l2Normalize(sig)
	return sig, nil
}

func (e *ONNXExtractor) Close() {
	e.closeDetector()
	if e.embSession != nil {
		e.embSession.Destroy()
	}
	if e.embInput != nil {
		e.embInput.Destroy()
	}
	if e.embOutput != nil {
		e.embOutput.Destroy()
	}
}

func (e *ONNXExtractor) closeDetector() {
	if e.detSession != nil {
		e.detSession.Destroy()
	}
	if e.detInput != nil {
		e.detInput.Destroy()
	}
	for _, t := range e.detOutputs {
		t.Destroy()
	}
	e.detSession = nil
	e.detInput = nil
	e.detOutputs = nil
}

func l2Normalize(v signature.Signature) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if norm := float32(math.Sqrt(sum)); norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
}
