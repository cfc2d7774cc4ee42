package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidToken = errors.New("invalid operator token")

const defaultTokenTTL = 12 * time.Hour

var tokenEncoding = base64.RawURLEncoding

// HMACStrategy signs "<operator>:<expiry>" payloads with a shared secret.
// Tokens have the form base64url(payload) + "." + base64url(signature).
type HMACStrategy struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewHMACStrategy builds HMACStrategy with provided secret and options.
func NewHMACStrategy(secret string, opts Options) *HMACStrategy {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &HMACStrategy{secret: []byte(secret), ttl: ttl, now: now}
}

// IssueToken generates a signed token for the operator.
func (s *HMACStrategy) IssueToken(operatorID int64) (string, error) {
	if operatorID == 0 {
		return "", ErrInvalidToken
	}
	expires := s.now().Add(s.ttl).Unix()
	payload := strconv.FormatInt(operatorID, 10) + ":" + strconv.FormatInt(expires, 10)
	return tokenEncoding.EncodeToString([]byte(payload)) + "." + tokenEncoding.EncodeToString(s.sign(payload)), nil
}

// ParseToken validates token and returns the encoded operator id.
func (s *HMACStrategy) ParseToken(token string) (int64, error) {
	encPayload, encSig, ok := strings.Cut(token, ".")
	if !ok {
		return 0, ErrInvalidToken
	}
	rawPayload, err := tokenEncoding.DecodeString(encPayload)
	if err != nil {
		return 0, ErrInvalidToken
	}
	sig, err := tokenEncoding.DecodeString(encSig)
	if err != nil {
		return 0, ErrInvalidToken
	}

	payload := string(rawPayload)
	if !hmac.Equal(s.sign(payload), sig) {
		return 0, ErrInvalidToken
	}

	idPart, expPart, ok := strings.Cut(payload, ":")
	if !ok {
		return 0, ErrInvalidToken
	}
	operatorID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	expires, err := strconv.ParseInt(expPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	if !time.Unix(expires, 0).After(s.now()) {
		return 0, ErrInvalidToken
	}

	return operatorID, nil
}

func (s *HMACStrategy) Name() string {
	return "hmac"
}

func (s *HMACStrategy) sign(payload string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
