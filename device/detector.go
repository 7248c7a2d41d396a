package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/baldhumanity/aiai-go/episode"
)

// HTTPDetector sends frames to an object detection service. The service
// receives a grayscale PNG and answers with
//
//	{"detections": [{"xmin": 0, "ymin": 0, "xmax": 0, "ymax": 0, "confidence": 0}]}
//
// in frame pixel coordinates.
type HTTPDetector struct {
	url    string
	client *http.Client
}

func NewHTTPDetector(url string, timeout time.Duration) *HTTPDetector {
	return &HTTPDetector{url: url, client: &http.Client{Timeout: timeout}}
}

type detectResponse struct {
	Detections []episode.Detection `json:"detections"`
}

func (d *HTTPDetector) Detect(ctx context.Context, img *image.Gray) ([]episode.Detection, error) {
	var body bytes.Buffer
	if err := png.Encode(&body, img); err != nil {
		return nil, fmt.Errorf("device: cannot encode frame: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, &body)
	if err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device: detector request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("device: detector returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("device: cannot decode detector response: %w", err)
	}
	return out.Detections, nil
}
