package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
)

// UploadBatchFile uploads requests as a JSONL file with purpose "batch" and
// returns the file ID.
func (c *Client) UploadBatchFile(ctx context.Context, name string, requests []BatchRequest) (string, error) {
	var jsonl bytes.Buffer
	enc := json.NewEncoder(&jsonl)
	for _, r := range requests {
		if err := enc.Encode(r); err != nil {
			return "", fmt.Errorf("failed to encode batch request %s: %w", r.CustomID, err)
		}
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	if err := writer.WriteField("purpose", BatchPurpose); err != nil {
		return "", fmt.Errorf("failed to write purpose field: %w", err)
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(jsonl.Bytes()); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	payload := form.Bytes()
	contentType := writer.FormDataContentType()

	body, err := c.doWithRetry(ctx, "upload batch file", func() (*http.Request, error) {
		req, err := c.newJSONRequest(ctx, http.MethodPost, "/files", payload)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("upload batch file: %w", err)
	}

	var file FileObject
	if err := json.Unmarshal(body, &file); err != nil {
		return "", fmt.Errorf("failed to parse file object: %w", err)
	}
	if file.ID == "" {
		return "", fmt.Errorf("upload batch file: response has no file id")
	}
	return file.ID, nil
}

// CreateBatch starts a chat completion batch over an uploaded input file.
func (c *Client) CreateBatch(ctx context.Context, inputFileID string) (*Batch, error) {
	payload, err := json.Marshal(map[string]string{
		"input_file_id":     inputFileID,
		"endpoint":          BatchEndpoint,
		"completion_window": BatchCompletionWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.doWithRetry(ctx, "create batch", func() (*http.Request, error) {
		return c.newJSONRequest(ctx, http.MethodPost, "/batches", payload)
	})
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	return decodeBatch(body)
}

// RetrieveBatch returns the current state of a batch.
func (c *Client) RetrieveBatch(ctx context.Context, batchID string) (*Batch, error) {
	body, err := c.doWithRetry(ctx, "retrieve batch", func() (*http.Request, error) {
		return c.newJSONRequest(ctx, http.MethodGet, "/batches/"+url.PathEscape(batchID), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve batch %s: %w", batchID, err)
	}
	return decodeBatch(body)
}

// FileContent downloads a file, typically a batch output or error file.
func (c *Client) FileContent(ctx context.Context, fileID string) ([]byte, error) {
	body, err := c.doWithRetry(ctx, "file content", func() (*http.Request, error) {
		return c.newJSONRequest(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/content", nil)
	})
	if err != nil {
		return nil, fmt.Errorf("file content %s: %w", fileID, err)
	}
	return body, nil
}

func decodeBatch(body []byte) (*Batch, error) {
	var batch Batch
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}
	if batch.ID == "" {
		return nil, fmt.Errorf("batch response has no id")
	}
	return &batch, nil
}
