// Package artifact turns one crawl's raw outputs (HTML, markdown,
// screenshot, PDF) into named, content-addressed objects in a Blob store,
// scoped under a per-user bucket prefix.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"crawlforge/internal/model"
	"crawlforge/internal/storage"
)

// AnonymousUserID is the stable user ID used for crawls with no
// authenticated caller. It is an ordinary user as far as this package is
// concerned: its bucket is derived the same way as any other user's.
const AnonymousUserID = "anonymous"

var nonWordRe = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Store writes crawl artifacts through a Blob and hands back retrieval
// references.
type Store struct {
	blob   storage.Blob
	getURL func(ctx context.Context, key string) (string, error)
}

// New constructs an artifact Store over blob. Retrieval URLs are requested
// from the Blob with a TTL of 0, which asks for its default TTL.
func New(blob storage.Blob) *Store {
	return &Store{blob: blob}
}

// UserBucket returns the 12-hex-character bucket segment for userID. It is
// deterministic and content-addressed: the same userID always maps to the
// same bucket, and distinct userIDs collide only as likely as a 48-bit hash
// allows.
func UserBucket(userID string) string {
	if userID == "" {
		userID = AnonymousUserID
	}
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])[:12]
}

// Filename derives a deterministic, content-addressed filename for a crawl
// output: a short hash of the source URL (and title, if present) prefixed
// by the source host, so two crawls of the same URL always produce the same
// object name and a directory listing stays human-scannable.
func Filename(sourceURL, title, ext string) string {
	host := "host"
	if u, err := url.Parse(sourceURL); err == nil && u.Host != "" {
		host = sanitize(u.Host)
	}

	hashInput := sourceURL
	if title != "" {
		hashInput += "|" + title
	}
	sum := sha256.Sum256([]byte(hashInput))
	short := hex.EncodeToString(sum[:])[:10]

	return fmt.Sprintf("%s_%s.%s", host, short, ext)
}

func sanitize(s string) string {
	s = strings.ToLower(s)
	s = nonWordRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// key builds the full storage key for one artifact kind belonging to a
// user's crawl.
func key(userID, sourceURL, title, ext string) string {
	return fmt.Sprintf("users/%s/%s", UserBucket(userID), Filename(sourceURL, title, ext))
}

// Save writes a single artifact and returns a reference to it.
func (s *Store) Save(ctx context.Context, userID, sourceURL, title, ext, contentType string, data []byte) (model.ArtifactReference, error) {
	k := key(userID, sourceURL, title, ext)
	if err := s.blob.Save(ctx, k, strings.NewReader(string(data)), contentType); err != nil {
		return model.ArtifactReference{}, fmt.Errorf("save artifact: %w", err)
	}

	ref := model.ArtifactReference{
		Filename:    Filename(sourceURL, title, ext),
		StoragePath: k,
	}
	if url, err := s.blob.SignedURL(ctx, k, 0); err == nil {
		ref.RetrievalURL = url
	}
	return ref, nil
}

// Get reads back a previously saved artifact's raw bytes.
func (s *Store) Get(ctx context.Context, storagePath string) ([]byte, error) {
	rc, err := s.blob.Get(ctx, storagePath)
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}
