// Package uploader is the client-side counterpart of the multipart upload
// API: it splits local files into chunks and drives the init / upload-part /
// complete / abort lifecycle against a running server.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"firstbit/storage-api/model"
	"firstbit/storage-api/storage"
)

// Client holds the HTTP plumbing for one server. AuthToken is the value of
// the auth_token cookie obtained from a login.
type Client struct {
	BaseURL   string
	AuthToken string
	HTTP      *http.Client
}

func NewClient(baseURL, authToken string) *Client {
	return &Client{
		BaseURL:   baseURL,
		AuthToken: authToken,
		HTTP:      http.DefaultClient,
	}
}

type InitResult struct {
	UploadID  string `json:"uploadId"`
	Key       string `json:"key"`
	ChunkSize int64  `json:"chunkSize"`
}

type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
}

func (c *Client) do(req *http.Request, out any) error {
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: c.AuthToken})

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return &apiError{Status: resp.StatusCode, Body: string(body)}
	}

	if out != nil {
		return json.Unmarshal(body, out)
	}

	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// Init opens an upload session for the file.
func (c *Client) Init(ctx context.Context, fileName string, size int64, contentType string) (InitResult, error) {
	var res InitResult

	err := c.postJSON(ctx, "/api/files/init-multipart", map[string]any{
		"fileName":    fileName,
		"size":        size,
		"contentType": contentType,
	}, &res)

	return res, err
}

// UploadPart sends one chunk and returns the part entry the server recorded
// for it.
func (c *Client) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, chunk []byte) (storage.CompletedPart, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	form.WriteField("uploadId", uploadID)
	form.WriteField("key", key)
	form.WriteField("partNumber", strconv.FormatInt(int64(partNumber), 10))

	fw, err := form.CreateFormFile("file", "chunk")
	if err != nil {
		return storage.CompletedPart{}, err
	}
	if _, err := fw.Write(chunk); err != nil {
		return storage.CompletedPart{}, err
	}
	if err := form.Close(); err != nil {
		return storage.CompletedPart{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/files/upload-multipart", &buf)
	if err != nil {
		return storage.CompletedPart{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var res struct {
		ETag       string `json:"etag"`
		PartNumber int32  `json:"partNumber"`
	}
	if err := c.do(req, &res); err != nil {
		return storage.CompletedPart{}, err
	}

	return storage.CompletedPart{PartNumber: res.PartNumber, ETag: res.ETag}, nil
}

// Complete finalizes the session and returns the created file record.
func (c *Client) Complete(ctx context.Context, key, uploadID, fileName, contentType string, size int64, parts []storage.CompletedPart) (*model.File, error) {
	var res struct {
		File *model.File `json:"file"`
	}

	err := c.postJSON(ctx, "/api/files/complete-multipart", map[string]any{
		"fileName":    fileName,
		"uploadId":    uploadID,
		"key":         key,
		"size":        model.ByteSize(size),
		"contentType": contentType,
		"parts":       parts,
	}, &res)
	if err != nil {
		return nil, err
	}

	return res.File, nil
}

// Abort cancels the session server-side.
func (c *Client) Abort(ctx context.Context, key, uploadID string) error {
	return c.postJSON(ctx, "/api/files/abort-multipart", map[string]any{
		"uploadId": uploadID,
		"key":      key,
	}, nil)
}
