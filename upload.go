package kdp

import (
	"context"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/koverse/kdp/api"
	"github.com/pkg/errors"
)

// FileConfig names a local file to upload. Path is either the file itself or
// the directory holding Filename.
type FileConfig struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

func (f FileConfig) localPath() (string, error) {
	if f.Path == "" {
		return f.Filename, nil
	}
	info, err := os.Stat(f.Path)
	if err != nil {
		return "", errors.Wrap(err, "statting path")
	}
	if info.IsDir() {
		return filepath.Join(f.Path, f.Filename), nil
	}
	return f.Path, nil
}

// Upload uploads a local file to a dataset.
func (c *Conn) Upload(ctx context.Context, datasetID string, file FileConfig, jwt string) ([]api.UploadedFile, error) {
	path, err := file.localPath()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	name := file.Filename
	if name == "" {
		name = filepath.Base(path)
	}
	return c.UploadReader(ctx, datasetID, name, f, jwt)
}

// UploadReader uploads the content of r to a dataset as a file named
// filename. The multipart body is streamed, not buffered.
func (c *Conn) UploadReader(ctx context.Context, datasetID, filename string, r io.Reader, jwt string) ([]api.UploadedFile, error) {
	if filename == "" {
		return nil, errors.New("filename is required")
	}
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(errors.Wrap(err, "creating form file"))
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(errors.Wrap(err, "copying file"))
			return
		}
		pw.CloseWithError(mw.Close())
	}()
	files, err := c.client.PostUploadWithBody(ctx, datasetID, mw.FormDataContentType(), pr, api.WithBearerToken(jwt))
	pr.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "uploading %s to %s", filename, datasetID)
	}
	c.stats.Count("kdp.upload.files", 1, 1)
	return files, nil
}
