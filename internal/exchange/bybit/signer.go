package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the v5 request signature: HMAC-SHA256 over
// timestamp + apiKey + recvWindow + payload, hex encoded. payload is the
// query string for GET requests and the raw JSON body for POST requests.
func Sign(secret, ts, apiKey, recvWindow, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + apiKey + recvWindow + payload))
	return hex.EncodeToString(mac.Sum(nil))
}
