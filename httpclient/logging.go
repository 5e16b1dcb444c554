package httpclient

import (
	nethttp "net/http"
	"strconv"
	"time"
	"unicode/utf8"
)

func (c *client) maxPayloadLogBytes() int {
	if c.config.MaxPayloadLogBytes > 0 {
		return c.config.MaxPayloadLogBytes
	}
	return DefaultMaxPayloadLogBytes
}

// preview cuts body to the payload log limit without splitting a UTF-8 sequence.
func (c *client) preview(body []byte) (preview []byte, truncated bool) {
	limit := c.maxPayloadLogBytes()
	if len(body) <= limit {
		return body, false
	}
	cut := limit
	for cut > 0 && cut > limit-utf8.UTFMax && !utf8.RuneStart(body[cut]) {
		cut--
	}
	if cut <= limit-utf8.UTFMax {
		cut = limit
	}
	return body[:cut], true
}

func (c *client) logRequest(req *nethttp.Request, body []byte, requestID string) {
	event := c.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", requestID)
	if n := len(req.Header); n > 0 {
		event = event.Int("header_count", n)
	}
	if len(body) > 0 {
		event = event.Int("body_size", len(body))
	}
	event.Msg("REST client request")

	if !c.config.LogPayloads {
		return
	}
	preview, truncated := c.preview(body)
	c.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("request_id", requestID).
		Interface("headers", map[string][]string(req.Header)).
		Int("body_size", len(body)).
		Str("body_truncated", strconv.FormatBool(truncated)).
		Bytes("body_preview", preview).
		Msg("REST client request")
}

func (c *client) logResponse(resp *Response, requestID string) {
	event := c.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount).
		Str("request_id", requestID)
	if len(resp.Body) > 0 {
		event = event.Int("body_size", len(resp.Body))
	}
	event.Msg("REST client response")

	if !c.config.LogPayloads {
		return
	}
	preview, truncated := c.preview(resp.Body)
	c.logger.Debug().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Interface("headers", map[string][]string(resp.Headers)).
		Int("body_size", len(resp.Body)).
		Str("body_truncated", strconv.FormatBool(truncated)).
		Bytes("body_preview", preview).
		Msg("REST client response")
}

func (c *client) logRetry(method, url, requestID string, attempt int, delay time.Duration, err error) {
	c.logger.Warn().
		Err(err).
		Str("method", method).
		Str("url", url).
		Str("request_id", requestID).
		Int("attempt", attempt+1).
		Dur("backoff", delay).
		Msg("REST client attempt failed, retrying")
}
