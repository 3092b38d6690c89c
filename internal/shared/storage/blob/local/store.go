package local

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"studybuddy-backend/internal/shared/storage/blob"
)

// RoutePrefix is where the download handler is mounted.
const RoutePrefix = "/api/v1/blobs/"

var (
	ErrBadSignature = errors.New("invalid signature")
	ErrExpired      = errors.New("signed url expired")
)

// On-disk layout: blob bodies under objects/, declared content types under
// types/, both mirroring the storage path.
const (
	objectsDir = "objects"
	typesDir   = "types"
)

// Store implements blob.Store on the local filesystem. Signed URLs point at
// the service's own download route and carry an HMAC over path and expiry.
type Store struct {
	baseDir    string
	publicBase string
	key        []byte
	now        func() time.Time
}

// New creates a local store rooted at baseDir. An empty signingKey gets a
// random per-process key, so URLs do not survive a restart.
func New(baseDir, publicBaseURL, signingKey string) *Store {
	key := []byte(signingKey)
	if len(key) == 0 {
		key = randomKey()
	}
	return &Store{
		baseDir:    baseDir,
		publicBase: publicBaseURL,
		key:        key,
		now:        time.Now,
	}
}

// Put writes data to disk at the exact path, replacing any existing file.
// contentType is kept alongside and returned by Fetch.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.resolve(objectsDir, key)
	if err != nil {
		return err
	}
	typePath, _ := s.resolve(typesDir, key)
	if err := writeFile(fullPath, data); err != nil {
		return err
	}
	if contentType == "" {
		if err := os.Remove(typePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove content type: %w", err)
		}
		return nil
	}
	if err := writeFile(typePath, []byte(contentType)); err != nil {
		return fmt.Errorf("content type: %w", err)
	}
	return nil
}

// writeFile replaces fullPath atomically through a temp file in the same dir.
func writeFile(fullPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// SignedURL returns a download link valid for validity from now.
func (s *Store) SignedURL(ctx context.Context, key string, validity time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fullPath, err := s.resolve(objectsDir, key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", blob.NotFound(key)
		}
		return "", fmt.Errorf("stat: %w", err)
	}

	expires := s.now().Add(validity).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", s.sign(key, expires))
	escaped := (&url.URL{Path: RoutePrefix + key}).EscapedPath()
	return s.publicBase + escaped + "?" + q.Encode(), nil
}

// Fetch reads a stored blob with the content type given to Put, sniffing one
// when none was recorded.
func (s *Store) Fetch(ctx context.Context, key string) (blob.Object, error) {
	if err := ctx.Err(); err != nil {
		return blob.Object{}, err
	}
	fullPath, err := s.resolve(objectsDir, key)
	if err != nil {
		return blob.Object{}, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return blob.Object{}, blob.NotFound(key)
		}
		return blob.Object{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, blob.MaxObjectBytes+1))
	if err != nil {
		return blob.Object{}, fmt.Errorf("read: %w", err)
	}
	if len(data) > blob.MaxObjectBytes {
		return blob.Object{}, fmt.Errorf("object too large: key=%s", key)
	}
	return blob.Object{Data: data, ContentType: s.contentType(key, data)}, nil
}

// Delete removes a stored blob.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.resolve(objectsDir, key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return blob.NotFound(key)
		}
		return fmt.Errorf("remove: %w", err)
	}
	typePath, _ := s.resolve(typesDir, key)
	if err := os.Remove(typePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove content type: %w", err)
	}
	return nil
}

// Verify checks a signature issued by SignedURL.
func (s *Store) Verify(key, expiresRaw, sig string) error {
	expires, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(key, expires))) {
		return ErrBadSignature
	}
	if s.now().Unix() > expires {
		return ErrExpired
	}
	return nil
}

func (s *Store) resolve(root, key string) (string, error) {
	clean, err := blob.CleanPath(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, root, filepath.FromSlash(clean)), nil
}

func (s *Store) contentType(key string, data []byte) string {
	typePath, err := s.resolve(typesDir, key)
	if err == nil {
		if raw, err := os.ReadFile(typePath); err == nil {
			if ct := strings.TrimSpace(string(raw)); ct != "" {
				return ct
			}
		}
	}
	return http.DetectContentType(data)
}

func (s *Store) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func randomKey() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	}
	return b
}

var _ blob.Store = (*Store)(nil)
