package phytodex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// Predict uploads a leaf image and returns the diagnosis. The image is
// sent as a multipart form, so the reader is buffered in memory.
func (c *Client) Predict(ctx context.Context, image io.Reader, filename string) (Prediction, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Prediction{}, fmt.Errorf("phytodex: build upload: %w", err)
	}
	if _, err := io.Copy(fw, image); err != nil {
		return Prediction{}, fmt.Errorf("phytodex: read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Prediction{}, fmt.Errorf("phytodex: build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/predict", &buf)
	if err != nil {
		return Prediction{}, fmt.Errorf("phytodex: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out Prediction
	header, err := c.send(req, &out)
	if err != nil {
		return Prediction{}, err
	}
	out.TokensUsed = tokensUsed(header)
	return out, nil
}
