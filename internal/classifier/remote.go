// Package classifier labels face crops with a remote image classifier.
//
// Crops are resized to a square input, normalized to [-1, 1) per channel
// and sent as a little-endian float32 tensor in NHWC order. The server
// answers with one probability per label; the most probable label wins.
package classifier

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"github.com/zsiec/facelens/internal/config"
	"github.com/zsiec/facelens/internal/detection"
	"github.com/zsiec/facelens/internal/logger"
)

const (
	imageMean = 128
	imageStd  = 128.0

	// ShapeHeader carries the tensor shape, e.g. "1,224,224,3".
	ShapeHeader = "X-Tensor-Shape"

	unknownLabel = "unknown"
)

// Response is the classifier server's reply.
type Response struct {
	Probabilities []float32 `json:"probabilities"`
}

// Remote is a detection.Classifier backed by an HTTP inference endpoint.
type Remote struct {
	endpoint  string
	labels    []string
	inputSize int
	timeout   time.Duration
	client    *http.Client
	logger    logger.Logger
}

// NewRemote loads the labels file and prepares the HTTP client.
func NewRemote(cfg config.ClassifierConfig, log logger.Logger) (*Remote, error) {
	labels, err := LoadLabels(cfg.LabelsFile)
	if err != nil {
		return nil, err
	}
	return newRemote(cfg, labels, &http.Client{}, log)
}

func newRemote(cfg config.ClassifierConfig, labels []string, client *http.Client, log logger.Logger) (*Remote, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("classifier endpoint is required")
	}
	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("classifier input size must be positive, got %d", cfg.InputSize)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("classifier needs at least one label")
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Remote{
		endpoint:  cfg.Endpoint,
		labels:    labels,
		inputSize: cfg.InputSize,
		timeout:   cfg.Timeout,
		client:    client,
		logger:    log.WithField("component", "classifier"),
	}, nil
}

// LoadLabels reads one label per line, skipping blank lines.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer f.Close()

	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

// Labels returns the label vocabulary.
func (r *Remote) Labels() []string {
	return r.labels
}

// Tensor resizes crop to size x size and normalizes it as (v-128)/128.
func Tensor(crop image.Image, size int) []float32 {
	resized := resize.Resize(uint(size), uint(size), crop, resize.Bilinear)
	b := resized.Bounds()

	out := make([]float32, 0, size*size*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			cr, cg, cb, _ := resized.At(x, y).RGBA()
			out = append(out,
				(float32(cr>>8)-imageMean)/imageStd,
				(float32(cg>>8)-imageMean)/imageStd,
				(float32(cb>>8)-imageMean)/imageStd,
			)
		}
	}
	return out
}

// Classify implements detection.Classifier.
func (r *Remote) Classify(ctx context.Context, crop *image.RGBA) (detection.Label, error) {
	if crop == nil || crop.Bounds().Empty() {
		return detection.Label{}, fmt.Errorf("empty crop")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var body bytes.Buffer
	if err := binary.Write(&body, binary.LittleEndian, Tensor(crop, r.inputSize)); err != nil {
		return detection.Label{}, fmt.Errorf("encode tensor: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &body)
	if err != nil {
		return detection.Label{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(ShapeHeader, fmt.Sprintf("1,%d,%d,3", r.inputSize, r.inputSize))
	req.Header.Set(logger.RequestIDHeader, uuid.New().String())

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return detection.Label{}, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return detection.Label{}, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return detection.Label{}, fmt.Errorf("decode classifier response: %w", err)
	}

	label, err := r.top(out.Probabilities)
	if err != nil {
		return detection.Label{}, err
	}

	r.logger.WithFields(map[string]interface{}{
		"label":       label.Name,
		"confidence":  label.Confidence,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Crop classified")
	return label, nil
}

// top picks the most probable label. Indices past the label list map to
// "unknown".
func (r *Remote) top(probs []float32) (detection.Label, error) {
	if len(probs) == 0 {
		return detection.Label{}, fmt.Errorf("classifier returned no probabilities")
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	name := unknownLabel
	if best < len(r.labels) {
		name = r.labels[best]
	}
	return detection.Label{Name: name, Confidence: probs[best]}, nil
}
