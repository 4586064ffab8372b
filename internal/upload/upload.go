package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Filename prefixes.
const (
	PrefixDiet     = ""
	PrefixExercise = "ex_"
)

const defaultMaxSize = 10 << 20

var ErrTooLarge = errors.New("uploaded file is too large")

var extPattern = regexp.MustCompile(`^[a-zA-Z0-9]{1,10}$`)

// Saved is an upload written to disk, with its bytes kept for the model call.
type Saved struct {
	Path     string
	Data     []byte
	MimeType string
}

// Store writes uploads under one directory as "<prefix><uuid>.<ext>".
type Store struct {
	dir     string
	maxSize int64
}

func NewStore(dir string, maxSize int64) *Store {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &Store{dir: dir, maxSize: maxSize}
}

// Dir returns the upload directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save reads fh fully and writes it to a fresh file.
func (s *Store) Save(fh *multipart.FileHeader, prefix string) (Saved, error) {
	if fh.Size > s.maxSize {
		return Saved{}, ErrTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return Saved{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, s.maxSize+1))
	if err != nil {
		return Saved{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return Saved{}, ErrTooLarge
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Saved{}, fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(s.dir, prefix+uuid.NewString()+extension(fh.Filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Saved{}, fmt.Errorf("write upload: %w", err)
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return Saved{Path: path, Data: data, MimeType: mimeType}, nil
}

// extension keeps the client's extension only when it is a plain alphanumeric token.
func extension(filename string) string {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if !extPattern.MatchString(ext) {
		return ""
	}
	return "." + strings.ToLower(ext)
}
