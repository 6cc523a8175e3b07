package comfyui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// UploadImage uploads an input image (local path or http(s) URL) to the
// server's /upload/image endpoint and returns the server-assigned filename.
// URL sources are downloaded to a temporary file that is removed on every
// exit path.
func (c *Client) UploadImage(ctx context.Context, pathOrURL string) (string, error) {
	localPath, filename, cleanup, err := c.prepareImage(ctx, pathOrURL)
	if err != nil {
		return "", err
	}
	defer cleanup()

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
	header.Set("Content-Type", mimeTypeFor(filename))
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to read image file: %w", err)
	}
	if err := writer.WriteField("overwrite", "true"); err != nil {
		return "", fmt.Errorf("failed to create multipart body: %w", err)
	}
	if err := writer.WriteField("type", "input"); err != nil {
		return "", fmt.Errorf("failed to create multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("/upload/image"), &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("image upload failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}

	c.logger.Infof("Uploaded image to ComfyUI: %s", result.Name)
	return result.Name, nil
}

// prepareImage resolves an image source to a local file. URL sources are
// downloaded to a temp file; the returned cleanup removes it.
func (c *Client) prepareImage(ctx context.Context, pathOrURL string) (localPath, filename string, cleanup func(), err error) {
	parsed, parseErr := url.Parse(pathOrURL)
	isURL := parseErr == nil && (parsed.Scheme == "http" || parsed.Scheme == "https")

	if !isURL {
		if _, err := os.Stat(pathOrURL); err != nil {
			return "", "", nil, fmt.Errorf("image file not found: %s", pathOrURL)
		}
		return pathOrURL, filepath.Base(pathOrURL), func() {}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pathOrURL, nil)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	suffix := path.Ext(parsed.Path)
	if suffix == "" {
		suffix = ".jpg"
	}
	tmp, err := os.CreateTemp("", "comfyui-input-*"+suffix)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		name = filepath.Base(tmp.Name())
	}
	return tmp.Name(), name, func() { os.Remove(tmp.Name()) }, nil
}

func mimeTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
