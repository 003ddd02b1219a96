// Package classify is the boundary to the external pose classifier service.
// The classifier is a separate process that takes a 224x224 RGB image and
// answers with a label and a confidence.
package classify

import (
	"github.com/bmharper/cimg/v2"
	"github.com/poseguard/poseguard/server/camera"
)

const (
	// InputSize is the square edge length the classifier model was trained on.
	InputSize = 224

	// NormalizationScale is the per-channel scale the classifier applies to
	// pixel values before inference. Recorded here because the annotation and
	// the sidecar must agree on preprocessing ownership: the sidecar scales,
	// we only resize.
	NormalizationScale = 1.0 / 255.0

	// NormalLabel is the baseline class. Every other label is an unwanted pose.
	NormalLabel = "Normal Pose"
)

// Labels is the classifier's class list, in class-index order.
var Labels = []string{
	NormalLabel,
	"Phone (Right Hand)",
	"Phone (Right Hand Talking)",
	"Phone (Left Hand)",
	"Phone (Left Hand Talking)",
	"Distracted",
	"Drinking",
	"Looking Back",
	"Makeup",
	"Looking Away",
}

type Result struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// ErrorResult is the sentinel emitted when classification fails for any
// reason. Downstream treats it as a non-vote.
var ErrorResult = Result{Label: "Error", Confidence: 0}

func (r Result) IsError() bool {
	return r.Label == ErrorResult.Label && r.Confidence == 0
}

// IsUnwanted is true if this result should count as an unwanted-pose vote at
// the given confidence threshold.
func (r Result) IsUnwanted(threshold float32) bool {
	return !r.IsError() && r.Label != NormalLabel && r.Confidence > threshold
}

// Classifier labels a single frame.
type Classifier interface {
	Classify(frame *camera.Frame) (Result, error)
	// IsAlive reports whether the classifier is reachable and healthy.
	IsAlive() error
}

// resizeForModel scales a frame down (or up) to the model's input size.
func resizeForModel(img *cimg.Image) *cimg.Image {
	if img.Width == InputSize && img.Height == InputSize {
		return img
	}
	return cimg.ResizeNew(img, InputSize, InputSize, nil)
}
