package jobclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"mediashrink/internal/auth"
	"mediashrink/internal/domain"
)

// UploadFile is a source file to send. Size must be the exact byte length of
// Content; it becomes part of the request's Content-Length.
type UploadFile struct {
	Name    string
	Content io.Reader
	Size    int64
}

// OpenUploadFile opens path for upload. The caller closes the returned file.
func OpenUploadFile(path string) (UploadFile, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadFile{}, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return UploadFile{}, nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return UploadFile{}, nil, fmt.Errorf("jobclient: %s is not a regular file", path)
	}
	return UploadFile{Name: filepath.Base(path), Content: f, Size: info.Size()}, f, nil
}

// Upload sends the source file with its encode parameters. With a nil
// onProgress the call simply awaits the response; otherwise onProgress
// receives the rounded percentage of request bytes handed to the transport,
// only when it changes, and never after Upload returns.
func (c *Client) Upload(ctx context.Context, file UploadFile, targetSizeMB float64, audioKbps int, creds auth.Credentials, onProgress func(percent int)) (domain.UploadResult, error) {
	const op = "upload"
	if file.Content == nil || file.Size < 0 {
		return domain.UploadResult{}, errors.New("jobclient: upload: file content and size are required")
	}
	if audioKbps <= 0 {
		audioKbps = domain.DefaultAudioBitrateKbps
	}

	prefix, suffix, contentType, err := multipartFrame(file.Name, targetSizeMB, audioKbps)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("jobclient: upload: build body: %w", err)
	}
	total := int64(len(prefix)) + file.Size + int64(len(suffix))
	var body io.Reader = io.MultiReader(bytes.NewReader(prefix), io.LimitReader(file.Content, file.Size), bytes.NewReader(suffix))

	if onProgress != nil {
		tracker := &progressReader{r: body, total: total, last: -1, fn: onProgress}
		defer tracker.finish()
		body = tracker
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload", body, creds)
	if err != nil {
		return domain.UploadResult{}, err
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)

	raw, err := c.roundTrip(op, req)
	if err != nil {
		return domain.UploadResult{}, err
	}
	var result domain.UploadResult
	if err := decodeJSON(op, raw, &result); err != nil {
		return domain.UploadResult{}, err
	}
	if result.SourceRef == "" {
		return domain.UploadResult{}, &DecodeError{Op: op, Err: errors.New("missing source_ref")}
	}
	c.logger.Debug().Str("source_ref", result.SourceRef).Int64("bytes", total).Msg("jobclient: upload complete")
	return result, nil
}

// multipartFrame renders everything around the file bytes: the file part
// header before them and the closing text fields and boundary after them.
func multipartFrame(filename string, targetSizeMB float64, audioKbps int) (prefix, suffix []byte, contentType string, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename == "" {
		filename = "upload.bin"
	}
	if _, err := mw.CreateFormFile("file", filename); err != nil {
		return nil, nil, "", err
	}
	prefix = append([]byte(nil), buf.Bytes()...)
	buf.Reset()

	if err := mw.WriteField("target_size_mb", strconv.FormatFloat(targetSizeMB, 'f', -1, 64)); err != nil {
		return nil, nil, "", err
	}
	if err := mw.WriteField("audio_bitrate_kbps", strconv.Itoa(audioKbps)); err != nil {
		return nil, nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, nil, "", err
	}
	suffix = append([]byte(nil), buf.Bytes()...)
	return prefix, suffix, mw.FormDataContentType(), nil
}

type progressReader struct {
	r     io.Reader
	total int64

	mu   sync.Mutex
	sent int64
	last int
	done bool
	fn   func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.advance(int64(n))
	}
	return n, err
}

func (p *progressReader) advance(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.sent += n
	pct := uploadPercent(p.sent, p.total)
	if pct == p.last {
		return
	}
	p.last = pct
	p.fn(pct)
}

// finish stops all further callbacks. The transport may still be draining
// the body on another goroutine when the response arrives.
func (p *progressReader) finish() {
	p.mu.Lock()
	p.done = true
	p.mu.Unlock()
}

func uploadPercent(sent, total int64) int {
	if total <= 0 {
		return 100
	}
	pct := int(math.Round(float64(sent) / float64(total) * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
