package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"go-gin-gorm-cms/internal/domain"
)

// Uploads 本地目录存储；文件名为随机 uuid + 清洗过的扩展名
type Uploads struct {
	dir      string
	maxBytes int64
}

func NewUploads(dir string, maxBytes int64) (*Uploads, error) {
	if maxBytes <= 0 {
		return nil, errors.New("storage: max bytes must be positive")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", abs, err)
	}
	return &Uploads{dir: abs, maxBytes: maxBytes}, nil
}

func (u *Uploads) Dir() string     { return u.dir }
func (u *Uploads) MaxBytes() int64 { return u.maxBytes }

// Save 边读边写到临时文件，超过上限返回 domain.ErrTooLarge 且不留文件。
// 返回最终文件的完整路径。
func (u *Uploads) Save(r io.Reader, originalName string) (string, error) {
	tmp, err := os.CreateTemp(u.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("storage: temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	n, err := io.Copy(tmp, io.LimitReader(r, u.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", fmt.Errorf("storage: write: %w", err)
	}
	if n > u.maxBytes {
		cleanup()
		return "", domain.TooLarge(fmt.Sprintf("file exceeds %d bytes", u.maxBytes))
	}

	final := filepath.Join(u.dir, uuid.NewString()+SafeExt(originalName))
	if err := os.Rename(tmpName, final); err != nil {
		cleanup()
		return "", fmt.Errorf("storage: rename: %w", err)
	}
	return final, nil
}

// Remove 只删除本目录下的文件；不存在不算错
func (u *Uploads) Remove(path string) error {
	if path == "" {
		return nil
	}
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) {
		return nil
	}
	err := os.Remove(filepath.Join(u.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// SafeExt 取原始文件名的扩展名：小写，仅字母数字，最长 10 个字符
func SafeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(strings.ReplaceAll(name, "\\", "/"))))
	if len(ext) < 2 || len(ext) > 11 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
