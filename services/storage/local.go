package storagesvc

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/intigym/backoffice/core"
)

// PhotosBucket is the directory member photos are stored in.
const PhotosBucket = "fotos-clientes"

// localStorage keeps files under a media directory served by the API at a public URL prefix.
type localStorage struct {
	dir     string
	baseURL string
	bucket  string
}

var _ core.FileStorage = (*localStorage)(nil)

func NewLocalStorage(conf *core.Config) (*localStorage, error) {
	dir := conf.Storage.MediaDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(conf.WorkDir, dir)
	}
	if err := os.MkdirAll(filepath.Join(dir, PhotosBucket), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating media directory")
	}
	return &localStorage{
		dir:     dir,
		baseURL: strings.TrimSuffix(conf.Storage.MediaURL, "/"),
		bucket:  PhotosBucket,
	}, nil
}

// Dir is the root of the media directory.
func (s *localStorage) Dir() string { return s.dir }

func (s *localStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	name = path.Base("/" + name)
	if name == "/" || name == "." {
		return "", errors.New("invalid file name")
	}

	dst := filepath.Join(s.dir, s.bucket, name)
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating file")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", errors.Wrap(err, "writing file")
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(dst)
		return "", errors.Wrap(err, "closing file")
	}
	return s.baseURL + "/" + s.bucket + "/" + name, nil
}

func (s *localStorage) Delete(ctx context.Context, url string) error {
	prefix := s.baseURL + "/" + s.bucket + "/"
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	name := strings.TrimPrefix(url, prefix)
	if name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, s.bucket, name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting file")
	}
	return nil
}
