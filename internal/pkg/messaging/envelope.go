package messaging

import (
	"encoding/json"
	"strconv"
)

// headerAttempt carries the delivery attempt on brokers that requeue by
// republishing (NATS core, Kafka).
const headerAttempt = "x-attempt"

// envelope wraps body and headers for NSQ, whose frames carry only a body.
type envelope struct {
	Headers map[string]string `json:"h,omitempty"`
	Body    []byte            `json:"b"`
}

func encodeEnvelope(msg OutgoingMessage) ([]byte, error) {
	env := envelope{Body: msg.Body}
	if len(msg.Headers) > 0 {
		env.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			if h.Key != "" {
				env.Headers[h.Key] = string(h.Value)
			}
		}
	}
	return json.Marshal(env)
}

// decodeEnvelope falls back to the raw frame when it is not an envelope, so
// messages published by other producers still reach the handler.
func decodeEnvelope(raw []byte) ([]byte, []Header) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Body == nil {
		return raw, nil
	}

	headers := make([]Header, 0, len(env.Headers))
	for k, v := range env.Headers {
		headers = append(headers, Header{Key: k, Value: []byte(v)})
	}
	return env.Body, headers
}

func attemptOf(headers []Header) int {
	n, err := strconv.Atoi(HeaderValue(headers, headerAttempt))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// withAttempt returns headers with the attempt header set to n.
func withAttempt(headers []Header, n int) []Header {
	out := make([]Header, 0, len(headers)+1)
	for _, h := range headers {
		if h.Key != headerAttempt {
			out = append(out, h)
		}
	}
	return append(out, Header{Key: headerAttempt, Value: []byte(strconv.Itoa(n))})
}
