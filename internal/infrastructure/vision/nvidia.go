package vision

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds the NVCF vision service settings.
type Config struct {
	APIKey   string
	APIURL   string
	AssetURL string
	Timeout  time.Duration
}

// Client talks to NVIDIA's NVCF-hosted Florence-2 endpoint. Classifying a
// frame takes three round trips: authorize an asset slot, upload the image
// bytes, then run inference referencing the asset.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

func NewClient(cfg Config, logger *zap.SugaredLogger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type assetAuthorization struct {
	UploadURL string `json:"uploadUrl"`
	AssetID   string `json:"assetId"`
}

type chatCompletion struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Describe uploads the frame and returns the model's scene description with
// the task-directive prefix stripped.
func (c *Client) Describe(ctx context.Context, imagePath, taskDirective string) (string, error) {
	imageBytes, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read frame: %w", err)
	}
	if len(imageBytes) == 0 {
		return "", fmt.Errorf("frame %s is empty", filepath.Base(imagePath))
	}

	contentType := contentTypeFor(imagePath)
	assetID, err := c.uploadAsset(ctx, imageBytes, contentType)
	if err != nil {
		return "", fmt.Errorf("upload asset: %w", err)
	}

	content, err := c.classify(ctx, assetID, taskDirective)
	if err != nil {
		return "", fmt.Errorf("classify asset %s: %w", assetID, err)
	}

	return strings.TrimSpace(strings.TrimPrefix(content, taskDirective)), nil
}

// uploadAsset authorizes an upload slot and PUTs the image bytes to the
// pre-signed URL.
func (c *Client) uploadAsset(ctx context.Context, imageBytes []byte, contentType string) (string, error) {
	description := "stream frame " + uuid.NewString()

	body, err := json.Marshal(map[string]string{
		"contentType": contentType,
		"description": description,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AssetURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("asset authorization returned %d", resp.StatusCode)
	}

	var auth assetAuthorization
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("decode asset authorization: %w", err)
	}
	if auth.UploadURL == "" || auth.AssetID == "" {
		return "", fmt.Errorf("asset authorization missing uploadUrl or assetId")
	}

	upload, err := http.NewRequestWithContext(ctx, http.MethodPut, auth.UploadURL, bytes.NewReader(imageBytes))
	if err != nil {
		return "", err
	}
	upload.Header.Set("Content-Type", contentType)
	upload.Header.Set("x-amz-meta-nvcf-asset-description", description)

	uploadResp, err := c.httpClient.Do(upload)
	if err != nil {
		return "", err
	}
	defer uploadResp.Body.Close()

	if uploadResp.StatusCode < 200 || uploadResp.StatusCode >= 300 {
		return "", fmt.Errorf("asset upload returned %d", uploadResp.StatusCode)
	}

	return auth.AssetID, nil
}

// classify runs inference against the uploaded asset. The service replies
// with either a direct JSON body or a ZIP archive wrapping the same JSON;
// both paths must yield identical results.
func (c *Client) classify(ctx context.Context, assetID, taskDirective string) (string, error) {
	content := fmt.Sprintf(`%s<img src="data:image/jpeg;asset_id,%s" />`, taskDirective, assetID)
	body, err := json.Marshal(map[string]interface{}{
		"messages": []map[string]string{
			{"role": "user", "content": content},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("NVCF-INPUT-ASSET-REFERENCES", assetID)
	req.Header.Set("NVCF-FUNCTION-ASSET-IDS", assetID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inference returned %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	respContentType := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(respContentType, "application/json"):
		return extractContent(payload)
	case strings.Contains(respContentType, "application/zip"):
		return extractZipContent(payload)
	default:
		return "", fmt.Errorf("unexpected response content type %q", respContentType)
	}
}

func extractContent(payload []byte) (string, error) {
	var completion chatCompletion
	if err := json.Unmarshal(payload, &completion); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion has no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// extractZipContent digs the completion JSON out of a ZIP reply: the archive
// holds one *.response member with the same shape as the direct JSON body.
func extractZipContent(payload []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", fmt.Errorf("open zip reply: %w", err)
	}

	for _, file := range reader.File {
		if !strings.HasSuffix(file.Name, ".response") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open zip member %s: %w", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read zip member %s: %w", file.Name, err)
		}
		return extractContent(data)
	}

	return "", fmt.Errorf("zip reply contains no .response member")
}

func contentTypeFor(imagePath string) string {
	contentType := mime.TypeByExtension(filepath.Ext(imagePath))
	if !strings.HasPrefix(contentType, "image/") {
		return "image/jpeg"
	}
	return contentType
}
