package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
)

// ChunkUpload is one chunk request.
type ChunkUpload struct {
	FileName string
	Body     io.Reader
	Size     int64
	// OnSent observes the cumulative number of body bytes handed to the connection.
	OnSent func(sent int64)
}

// FinalizeRequest commits the uploaded chunks as a file.
type FinalizeRequest struct {
	Name     string         `json:"name"`
	Size     int64          `json:"size"`
	Type     string         `json:"type"`
	Folder   string         `json:"folder"`
	IsPublic bool           `json:"isPublic"`
	Chunks   []domain.Chunk `json:"chunks"`
}

// Transport is the gateway side of the upload protocol.
type Transport interface {
	UploadChunk(ctx context.Context, up ChunkUpload) (domain.Chunk, error)
	Finalize(ctx context.Context, req FinalizeRequest) error
	Cancel(ctx context.Context, blobRefs []string) error
}

// StatusError is an HTTP error answer from the gateway. It is never retried:
// the gateway throttles centrally and a repeated request would only add load.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway answered %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway answered %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether err is a transport failure worth another attempt.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// HTTPTransport talks to the gateway over HTTP.
type HTTPTransport struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ Transport = (*HTTPTransport)(nil)

func NewHTTPTransport(baseURL, token string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTransport) UploadChunk(ctx context.Context, up ChunkUpload) (domain.Chunk, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", up.FileName)
		if err == nil {
			_, err = io.Copy(part, &countingReader{r: up.Body, onRead: up.OnSent})
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/upload/chunk", pr)
	if err != nil {
		_ = pr.Close()
		return domain.Chunk{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var chunk domain.Chunk
	if err := t.do(req, &chunk); err != nil {
		return domain.Chunk{}, err
	}
	return chunk, nil
}

func (t *HTTPTransport) Finalize(ctx context.Context, payload FinalizeRequest) error {
	req, err := t.jsonRequest(ctx, http.MethodPost, "/upload/finalize", payload)
	if err != nil {
		return err
	}
	return t.do(req, nil)
}

func (t *HTTPTransport) Cancel(ctx context.Context, blobRefs []string) error {
	req, err := t.jsonRequest(ctx, http.MethodDelete, "/upload/cancel", map[string][]string{"blobRefs": blobRefs})
	if err != nil {
		return err
	}
	return t.do(req, nil)
}

func (t *HTTPTransport) jsonRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx JSON answer into out when out is non-nil.
func (t *HTTPTransport) do(req *http.Request, out any) error {
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
		return &StatusError{StatusCode: resp.StatusCode, Message: body.Error}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s answer: %w", req.URL.Path, err)
	}
	return nil
}

type countingReader struct {
	r      io.Reader
	n      int64
	onRead func(int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.n += int64(n)
		if c.onRead != nil {
			c.onRead(c.n)
		}
	}
	return n, err
}
