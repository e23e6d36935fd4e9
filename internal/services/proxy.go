package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"llmhub/internal/models"
	"llmhub/internal/registry"
)

const (
	chatCompletionsPath = "/v1/chat/completions"
	streamChunkSize     = 32 * 1024
)

// ProxyService forwards OpenAI-compatible chat completions to participants.
type ProxyService struct {
	store  registry.Store
	router *Router
	bus    Broadcaster
	client *http.Client
	log    logrus.FieldLogger
}

// NewProxyService returns a proxy using client for upstream calls. A nil
// client gets one without a timeout, since streamed generations can run
// for minutes.
func NewProxyService(store registry.Store, router *Router, bus Broadcaster, client *http.Client, log logrus.FieldLogger) *ProxyService {
	if client == nil {
		client = &http.Client{}
	}
	return &ProxyService{
		store:  store,
		router: router,
		bus:    bus,
		client: client,
		log:    log.WithField("component", "proxy"),
	}
}

type chatRequest struct {
	fields   map[string]json.RawMessage
	selector string
	stream   bool
}

func parseChatRequest(body []byte) (*chatRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, ErrInvalidBody
	}

	req := &chatRequest{fields: fields}
	if raw, ok := fields["model"]; ok {
		if err := json.Unmarshal(raw, &req.selector); err != nil {
			return nil, Validationf("model must be a string")
		}
	}
	if req.selector == "" {
		return nil, Validationf("model is required")
	}
	if raw, ok := fields["stream"]; ok {
		_ = json.Unmarshal(raw, &req.stream)
	}
	return req, nil
}

// upstreamBody rewrites the model to the participant's backend model and
// fills generation defaults the caller left unset.
func (r *chatRequest) upstreamBody(p models.Participant) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.fields)+8)
	for k, v := range r.fields {
		out[k] = v
	}

	defaults, err := json.Marshal(p.Config)
	if err != nil {
		return nil, errors.Wrap(err, "marshal generation config")
	}
	var defaultFields map[string]json.RawMessage
	if err := json.Unmarshal(defaults, &defaultFields); err != nil {
		return nil, errors.Wrap(err, "unmarshal generation config")
	}
	for k, v := range defaultFields {
		if _, set := out[k]; !set {
			out[k] = v
		}
	}

	model, err := json.Marshal(p.Model)
	if err != nil {
		return nil, errors.Wrap(err, "marshal model")
	}
	out["model"] = model

	return json.Marshal(out)
}

// ChatCompletion resolves the target participant for body and relays the
// upstream response to w. A non-nil error means nothing has been written
// to w yet and the caller should render it.
func (s *ProxyService) ChatCompletion(ctx context.Context, room models.Room, body []byte, w http.ResponseWriter) error {
	req, err := parseChatRequest(body)
	if err != nil {
		return err
	}

	p, err := s.router.Resolve(room.ID, req.selector)
	if err != nil {
		return err
	}

	upstream, err := req.upstreamBody(p)
	if err != nil {
		return err
	}

	// Lost a race with the liveness sweep or another call.
	if !s.store.TransitionStatus(room.ID, p.ID, models.StatusOnline, models.StatusBusy) {
		return ErrParticipantOffline
	}
	defer s.store.TransitionStatus(room.ID, p.ID, models.StatusBusy, models.StatusOnline)

	log := s.log.WithFields(logrus.Fields{
		"room":        room.Code,
		"participant": p.ID,
		"selector":    req.selector,
		"stream":      req.stream,
	})
	log.Debug("proxying chat completion")

	s.bus.Broadcast(models.LLMRequest{ParticipantID: p.ID, Model: req.selector}, room.Code)

	call := &upstreamCall{
		svc:         s,
		room:        room,
		participant: p,
		log:         log,
		start:       time.Now(),
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint+chatCompletionsPath, bytes.NewReader(upstream))
	if err != nil {
		return call.fail(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return call.fail(err)
	}
	defer resp.Body.Close()
	call.headersAt = time.Now()

	if req.stream {
		call.stream(w, resp)
		return nil
	}
	return call.buffer(w, resp)
}

type upstreamCall struct {
	svc         *ProxyService
	room        models.Room
	participant models.Participant
	log         logrus.FieldLogger

	start      time.Time
	headersAt  time.Time
	firstToken time.Time
}

func (c *upstreamCall) fail(err error) error {
	c.reportError(err.Error())
	return ProxyError(err)
}

func (c *upstreamCall) reportError(msg string) {
	c.log.WithField("error", msg).Warn("chat completion failed")
	c.svc.bus.Broadcast(models.LLMError{ParticipantID: c.participant.ID, Error: msg}, c.room.Code)
}

func (c *upstreamCall) reportComplete(tokens int) {
	end := time.Now()
	first := c.firstToken
	if first.IsZero() {
		first = c.headersAt
	}

	metrics := &models.LLMMetrics{
		Tokens:              tokens,
		LatencyFirstTokenMs: first.Sub(c.start).Milliseconds(),
		DurationMs:          end.Sub(c.start).Milliseconds(),
	}
	if secs := end.Sub(c.start).Seconds(); tokens > 0 && secs > 0 {
		metrics.TokensPerSecond = float64(tokens) / secs
	}

	c.log.WithFields(logrus.Fields{
		"duration_ms": metrics.DurationMs,
		"tokens":      tokens,
	}).Info("chat completion finished")
	c.svc.bus.Broadcast(models.LLMComplete{ParticipantID: c.participant.ID, Metrics: metrics}, c.room.Code)
}

// stream relays the upstream body chunk by chunk. Each write blocks until
// the caller accepts it, so a slow reader slows the upstream read.
func (c *upstreamCall) stream(w http.ResponseWriter, resp *http.Response) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(resp.StatusCode)

	rc := http.NewResponseController(w)
	_ = rc.Flush()

	buf := make([]byte, streamChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if c.firstToken.IsZero() {
				c.firstToken = time.Now()
			}
			if _, err := w.Write(buf[:n]); err != nil {
				c.reportError(fmt.Sprintf("client disconnected: %v", err))
				return
			}
			_ = rc.Flush()
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			c.reportError(readErr.Error())
			return
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.reportError(fmt.Sprintf("upstream returned status %d", resp.StatusCode))
		return
	}
	c.reportComplete(0)
}

func (c *upstreamCall) buffer(w http.ResponseWriter, resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(err)
	}
	if !json.Valid(data) {
		return c.fail(errors.Errorf("upstream returned invalid JSON (status %d)", resp.StatusCode))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(data); err != nil {
		c.log.WithError(err).Debug("failed to write response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.reportError(fmt.Sprintf("upstream returned status %d", resp.StatusCode))
		return nil
	}
	c.reportComplete(completionTokens(data))
	return nil
}

func completionTokens(data []byte) int {
	var body struct {
		Usage *struct {
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Usage == nil {
		return 0
	}
	return body.Usage.CompletionTokens
}
