package bakong

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Sign builds the request signature: keys sorted lexicographically, joined
// as key=value pairs with '&', HMAC-SHA256 over the joined string, hex
// encoded.
func Sign(fields map[string]string, secretKey string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignPayload computes the webhook signature over the exact raw payload
// bytes. The gateway sends this in X-Signature.
func SignPayload(payload []byte, secretKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature recomputes the HMAC over the exact raw payload
// bytes and compares in constant time.
func VerifyWebhookSignature(payload []byte, signature, secretKey string) bool {
	if signature == "" {
		return false
	}
	expected := SignPayload(payload, secretKey)
	return hmac.Equal([]byte(signature), []byte(expected))
}
