package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"
)

// Signer handles Binance futures API request authentication
type Signer struct {
	apiKey    string
	apiSecret string
}

// NewSigner creates a new Signer instance
func NewSigner(apiKey, apiSecret string) *Signer {
	return &Signer{
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// APIKeyHeader returns the header carrying the API key.
func (s *Signer) APIKeyHeader() (string, string) {
	return "X-MBX-APIKEY", s.apiKey
}

// SignQuery appends timestamp, optional recvWindow and the HMAC-SHA256
// signature to the query parameters, returning the encoded string ready
// for the request. Binance signs the raw encoded query, so the
// signature must be computed after encoding and appended last.
func (s *Signer) SignQuery(params url.Values, recvWindowMS int) string {
	params.Set("timestamp", fmt.Sprintf("%d", time.Now().UnixMilli()))
	if recvWindowMS > 0 {
		params.Set("recvWindow", fmt.Sprintf("%d", recvWindowMS))
	}

	encoded := params.Encode()
	return encoded + "&signature=" + computeHmacSha256(encoded, s.apiSecret)
}

func computeHmacSha256(message string, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
