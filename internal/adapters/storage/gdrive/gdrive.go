package gdrive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"loopmix/internal/ports"
)

// Client implements ports.StorageProvider backed by Google Drive. The key
// passed to PutObject becomes the Drive file name; the returned ObjectKey
// is the Drive fileId, which later Get/Delete calls must use.
type Client struct {
	srv      *drive.Service
	folderID string
}

func NewClient(srv *drive.Service, folderID string) *Client {
	return &Client{srv: srv, folderID: folderID}
}

func (c *Client) Provider() string { return "gdrive" }

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	// A re-publish of the same key must overwrite, so an existing file with
	// this name gets its content updated instead of a duplicate created.
	existingID, err := c.findByName(ctx, in.ObjectKey)
	if err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("gdrive lookup failed: %w", err)
	}

	if existingID != "" {
		call := c.srv.Files.Update(existingID, &drive.File{})
		if in.ContentType != "" {
			call = call.Media(in.Reader, googleapi.ContentType(in.ContentType))
		} else {
			call = call.Media(in.Reader)
		}
		updated, err := call.SupportsAllDrives(true).Context(ctx).Do()
		if err != nil {
			return ports.PutObjectOutput{}, fmt.Errorf("gdrive update failed: %w", err)
		}
		return ports.PutObjectOutput{ObjectKey: updated.Id, Size: in.Size}, nil
	}

	file := &drive.File{Name: in.ObjectKey}
	if c.folderID != "" {
		file.Parents = []string{c.folderID}
	}

	call := c.srv.Files.Create(file)
	if in.ContentType != "" {
		call = call.Media(in.Reader, googleapi.ContentType(in.ContentType))
	} else {
		call = call.Media(in.Reader)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("gdrive upload failed: %w", err)
	}

	return ports.PutObjectOutput{ObjectKey: created.Id, Size: in.Size}, nil
}

// findByName resolves a file name to its Drive id within the configured
// folder. Returns "" when no live file carries the name.
func (c *Client) findByName(ctx context.Context, name string) (string, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(name)
	query := fmt.Sprintf("name = '%s' and trashed = false", escaped)
	if c.folderID != "" {
		query += fmt.Sprintf(" and '%s' in parents", c.folderID)
	}

	list, err := c.srv.Files.List().
		Q(query).
		Fields("files(id)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func (c *Client) GetObject(_ context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error) {
	resp, err := c.srv.Files.Get(objectKey).
		SupportsAllDrives(true).
		Download()
	if err != nil {
		return nil, "", 0, err
	}

	contentType = resp.Header.Get("Content-Type")
	size = resp.ContentLength
	return resp.Body, contentType, size, nil
}

func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	return c.srv.Files.Delete(objectKey).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
}
