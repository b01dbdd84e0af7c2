package lark

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
)

// Message is the envelope posted to the Lark webhook. Timestamp and
// sign are present only in signed mode; a message is built fresh per
// delivery attempt since Lark rejects stale timestamp/signature pairs.
type Message struct {
	Timestamp string `json:"timestamp,omitempty"`
	Sign      string `json:"sign,omitempty"`
	MsgType   string `json:"msg_type"`
	Card      *Card  `json:"card"`
}

// GenerateSignature computes the Lark custom-bot signature for a unix
// timestamp. Lark's documented construction is unusual: the string
// "<timestamp>\n<secret>" is the HMAC-SHA256 *key* and the signed
// message is empty. This must be preserved exactly; a conventional
// HMAC-of-payload does not interoperate.
func GenerateSignature(signingSecret string, timestamp int64) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, signingSecret)
	mac := hmac.New(sha256.New, []byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// NewMessage wraps a card into a webhook envelope, signing it when a
// secret is configured. Unsigned mode omits timestamp and sign
// entirely.
func NewMessage(card *Card, signingSecret string, timestamp int64) *Message {
	msg := &Message{
		MsgType: "interactive",
		Card:    card,
	}
	if signingSecret != "" {
		msg.Timestamp = strconv.FormatInt(timestamp, 10)
		msg.Sign = GenerateSignature(signingSecret, timestamp)
	}
	return msg
}
