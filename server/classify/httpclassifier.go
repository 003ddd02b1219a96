package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/poseguard/poseguard/server/camera"
)

// HTTPClassifier talks to the classifier sidecar over HTTP. The sidecar
// accepts a multipart JPEG POST on /classify and answers
// {"label": ..., "confidence": ...}.
type HTTPClassifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClassifier(baseURL string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClassifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClassifier) Classify(frame *camera.Frame) (Result, error) {
	small := resizeForModel(frame.Image)
	jpg, err := cimg.Compress(small, cimg.MakeCompressParams(cimg.Sampling420, 90, 0))
	if err != nil {
		return ErrorResult, fmt.Errorf("Failed to encode frame for classifier: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "frame.jpg")
	if err != nil {
		return ErrorResult, err
	}
	if _, err := part.Write(jpg); err != nil {
		return ErrorResult, err
	}
	if err := writer.Close(); err != nil {
		return ErrorResult, err
	}

	req, err := http.NewRequest("POST", c.baseURL+"/classify", body)
	if err != nil {
		return ErrorResult, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return ErrorResult, fmt.Errorf("Classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return ErrorResult, fmt.Errorf("Classifier returned status %v: %v", resp.StatusCode, string(msg))
	}

	result := Result{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ErrorResult, fmt.Errorf("Failed to decode classifier response: %w", err)
	}
	if result.Label == "" {
		return ErrorResult, fmt.Errorf("Classifier returned an empty label")
	}
	return result, nil
}

func (c *HTTPClassifier) IsAlive() error {
	resp, err := c.client.Get(c.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("Classifier not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Classifier unhealthy: status %v", resp.StatusCode)
	}
	return nil
}
