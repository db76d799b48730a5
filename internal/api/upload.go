package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/rngallery/rngallery/internal/upload"
)

// RequestKey asks the encoding service for the name the upload will get.
func (c *Client) RequestKey(ctx context.Context) (string, error) {
	var resp struct {
		Name string `json:"gfyname"`
	}
	if err := c.do(ctx, c.http, http.MethodPost, c.encoderURL+"/gfycats", nil, "", false, &resp); err != nil {
		return "", fmt.Errorf("request upload key: %w", err)
	}
	if resp.Name == "" {
		return "", fmt.Errorf("request upload key: empty key")
	}
	return resp.Name, nil
}

// Upload streams the file to the filedrop as multipart form fields key and file.
func (c *Client) Upload(ctx context.Context, key string, file upload.File, onProgress func(loaded, total int64)) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = src.Close() }()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMultipart(mw, key, file, src, onProgress))
	}()
	// Unblocks the writer if the request ends before the body is drained.
	defer func() { _ = pr.Close() }()

	if err := c.do(ctx, c.upload, http.MethodPost, c.filedropURL, pr, mw.FormDataContentType(), false, nil); err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	return nil
}

func writeMultipart(mw *multipart.Writer, key string, file upload.File, src io.Reader, onProgress func(loaded, total int64)) error {
	if err := mw.WriteField("key", key); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, NewProgressReader(src, file.Size, onProgress)); err != nil {
		return err
	}
	return mw.Close()
}

// Finalize registers the uploaded key with the gallery backend.
func (c *Client) Finalize(ctx context.Context, key string) error {
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/gifs", map[string]string{"id": key}, nil); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

func (c *Client) Status(ctx context.Context, key string) (*upload.Status, error) {
	var status *upload.Status
	u := c.encoderURL + "/gfycats/fetch/status/" + url.PathEscape(key)
	if err := c.do(ctx, c.http, http.MethodGet, u, nil, "", false, &status); err != nil {
		return nil, fmt.Errorf("get upload status: %w", err)
	}
	return status, nil
}

// ProgressReader reports how much of total has been read.
type ProgressReader struct {
	r          io.Reader
	loaded     int64
	total      int64
	onProgress func(loaded, total int64)
}

func NewProgressReader(r io.Reader, total int64, onProgress func(loaded, total int64)) *ProgressReader {
	return &ProgressReader{r: r, total: total, onProgress: onProgress}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.loaded, p.total)
		}
	}
	return n, err
}
