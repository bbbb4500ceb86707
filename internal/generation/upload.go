package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"adpipeline/internal/domain"
	"adpipeline/internal/domain/ports"
	"adpipeline/internal/metrics"
)

const uploadTimeout = 120 * time.Second

// CatboxHost uploads via catbox.moe's multipart fileupload endpoint.
type CatboxHost struct{ httpClient *http.Client }

func NewCatboxHost(hc *http.Client) *CatboxHost { return &CatboxHost{httpClient: orDefaultClient(hc)} }

func (h *CatboxHost) Name() string { return "catbox.moe" }

func (h *CatboxHost) Upload(ctx context.Context, r io.Reader, size int64, filename string) (string, error) {
	body, contentType, err := multipartBody("fileToUpload", filename, r, map[string]string{"reqtype": "fileupload"})
	if err != nil {
		return "", err
	}
	resp, err := postMultipart(ctx, h.httpClient, "https://catbox.moe/user/api.php", body, contentType)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if !strings.HasPrefix(text, "http") {
		return "", fmt.Errorf("catbox.moe: unexpected response %q", truncate(text, 100))
	}
	return text, nil
}

// ZeroXZeroHost uploads via 0x0.st's multipart endpoint.
type ZeroXZeroHost struct{ httpClient *http.Client }

func NewZeroXZeroHost(hc *http.Client) *ZeroXZeroHost { return &ZeroXZeroHost{httpClient: orDefaultClient(hc)} }

func (h *ZeroXZeroHost) Name() string { return "0x0.st" }

func (h *ZeroXZeroHost) Upload(ctx context.Context, r io.Reader, size int64, filename string) (string, error) {
	body, contentType, err := multipartBody("file", filename, r, nil)
	if err != nil {
		return "", err
	}
	resp, err := postMultipart(ctx, h.httpClient, "https://0x0.st", body, contentType)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// FileIOHost uploads via file.io's JSON-responding multipart endpoint.
type FileIOHost struct{ httpClient *http.Client }

func NewFileIOHost(hc *http.Client) *FileIOHost { return &FileIOHost{httpClient: orDefaultClient(hc)} }

func (h *FileIOHost) Name() string { return "file.io" }

func (h *FileIOHost) Upload(ctx context.Context, r io.Reader, size int64, filename string) (string, error) {
	body, contentType, err := multipartBody("file", filename, r, nil)
	if err != nil {
		return "", err
	}
	resp, err := postMultipart(ctx, h.httpClient, "https://file.io", body, contentType)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Success bool   `json:"success"`
		Link    string `json:"link"`
	}
	if err := json.Unmarshal([]byte(resp), &parsed); err != nil || !parsed.Success {
		return "", fmt.Errorf("file.io: unexpected response %q", truncate(resp, 100))
	}
	return parsed.Link, nil
}

// FallbackUploader tries each UploadHost in order, returning the first
// success.
type FallbackUploader struct {
	hosts []ports.UploadHost
}

func NewFallbackUploader(hosts ...ports.UploadHost) *FallbackUploader {
	return &FallbackUploader{hosts: hosts}
}

func (u *FallbackUploader) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	var errs []string
	for _, host := range u.hosts {
		url, err := host.Upload(ctx, bytes.NewReader(data), int64(len(data)), filename)
		if err == nil {
			return url, nil
		}
		metrics.GenerationUploadFailuresTotal.WithLabelValues(host.Name()).Inc()
		errs = append(errs, fmt.Sprintf("%s: %v", host.Name(), err))
	}
	return "", domain.NewStageError(domain.ErrorKindUploadFailed, "all upload hosts failed", fmt.Errorf("%s", strings.Join(errs, "; ")))
}

func multipartBody(fieldName, filename string, r io.Reader, extraFields map[string]string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range extraFields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	part, err := w.CreateFormFile(fieldName, filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func postMultipart(ctx context.Context, hc *http.Client, url string, body *bytes.Buffer, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 100))
	}
	return string(respBody), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orDefaultClient(hc *http.Client) *http.Client {
	if hc != nil {
		return hc
	}
	return &http.Client{Timeout: uploadTimeout}
}
