package file

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// LinkSigner is an ObjectStore for development and tests: it mints
// HMAC-signed URLs against a storage gateway instead of a cloud SDK.
type LinkSigner struct {
	baseURL string
	secret  []byte
}

// NewLinkSigner constructs a LinkSigner rooted at baseURL.
func NewLinkSigner(baseURL, secret string) *LinkSigner {
	return &LinkSigner{baseURL: baseURL, secret: []byte(secret)}
}

var _ ObjectStore = (*LinkSigner)(nil)

// PresignUpload returns a signed PUT URL for the object key.
func (s *LinkSigner) PresignUpload(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return s.sign("PUT", key, contentType, ttl)
}

// PresignDownload returns a signed GET URL for the object key.
func (s *LinkSigner) PresignDownload(_ context.Context, key string, ttl time.Duration) (string, error) {
	return s.sign("GET", key, "", ttl)
}

func (s *LinkSigner) sign(method, key, contentType string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key required")
	}
	expires := time.Now().Add(ttl).Unix()
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%s\n%s\n%d", method, key, contentType, expires)
	sig := hex.EncodeToString(mac.Sum(nil))

	query := url.Values{}
	query.Set("expires", strconv.FormatInt(expires, 10))
	query.Set("signature", sig)
	if contentType != "" {
		query.Set("content_type", contentType)
	}
	return fmt.Sprintf("%s/%s?%s", s.baseURL, key, query.Encode()), nil
}
