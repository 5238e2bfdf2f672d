package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"vlmd/internal/generate"
	"vlmd/internal/manager"
	"vlmd/pkg/types"
)

// chatCompletionsHandler godoc
// @Summary      Create chat completion
// @Description  OpenAI-compatible chat completion. Message content may mix text and image_url parts; images are fetched from http(s), s3, gs, file paths or data: URLs. With stream=true the response is a text/event-stream of chat.completion.chunk objects ending in "data: [DONE]". A generation failure after streaming began is sent as a data line carrying an error object, and the stream ends without [DONE].
// @Tags         chat
// @Accept       json
// @Produce      json
// @Produce      text/event-stream
// @Param        request body types.ChatCompletionRequest true "Chat completion request"
// @Success      200 {object} types.ChatCompletionResponse
// @Failure      400 {object} types.ErrorResponse
// @Failure      415 {object} types.ErrorResponse
// @Failure      429 {object} types.ErrorResponse
// @Failure      503 {object} types.ErrorResponse
// @Failure      500 {object} types.ErrorResponse
// @Router       /v1/chat/completions [post]
func chatCompletionsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Content-Type check
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeJSONError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		var req types.ChatCompletionRequest
		if err := wire.Unmarshal(raw, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		lvl := requestLogLevel(r)
		start := time.Now()
		logChatStart(r, lvl, req.Model, req.Stream)

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if d := inferTimeoutDuration(); d > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, d)
			defer tcancel()
		}

		var sink completionSink
		if req.Stream {
			sink = newSSESink(w, lvl >= LevelDebug)
		} else {
			sink = &bufferSink{}
		}
		res, err := svc.Infer(ctx, req, sink)
		if r.Context().Err() != nil {
			// client went away; nothing left to write
			logChatEnd(r, lvl, 499, start, res.Tokens, r.Context().Err())
			return
		}
		if err != nil && errors.Is(err, context.DeadlineExceeded) && inferTimeout > 0 {
			err = timeoutError{err}
		}
		status := sink.finish(w, res, err)
		if status == http.StatusTooManyRequests {
			IncrementBackpressure("admission")
		}
		logChatEnd(r, lvl, status, start, res.Tokens, err)
	}
}

type timeoutError struct{ err error }

func (e timeoutError) Error() string   { return "generation timed out: " + e.err.Error() }
func (e timeoutError) Unwrap() error   { return e.err }
func (e timeoutError) StatusCode() int { return http.StatusGatewayTimeout }

// completionSink is a manager.Sink that also writes the end of the response.
type completionSink interface {
	manager.Sink
	// finish writes the response tail (or the error) and returns the HTTP
	// status the client saw.
	finish(w http.ResponseWriter, res generate.Result, err error) int
}

// sseSink streams chat.completion.chunk events as they are generated.
type sseSink struct {
	w     http.ResponseWriter
	out   io.Writer
	flush func()
	info  manager.RequestInfo
	begun bool
	chunk types.ChatCompletionChunk
}

func newSSESink(w http.ResponseWriter, debug bool) *sseSink {
	s := &sseSink{w: w, out: w, flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		s.flush = f.Flush
	}
	if debug {
		s.out = io.MultiWriter(w, &loggingLineWriter{})
	}
	return s
}

func (s *sseSink) Start(info manager.RequestInfo) error {
	s.info = info
	s.begun = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.chunk = types.ChatCompletionChunk{
		ID:      completionID(info),
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   info.Model,
	}
	return s.emit(types.ChatDelta{Role: "assistant"}, nil)
}

func (s *sseSink) Fragment(text string) error {
	return s.emit(types.ChatDelta{Content: text}, nil)
}

func (s *sseSink) emit(delta types.ChatDelta, finish *string) error {
	c := s.chunk
	c.Choices = []types.ChatChoice{{Index: 0, Delta: &delta, FinishReason: finish}}
	return s.event(c)
}

func (s *sseSink) event(v any) error {
	b, err := wire.Marshal(v)
	if err != nil {
		return err
	}
	return s.line(b)
}

func (s *sseSink) line(payload []byte) error {
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')
	if _, err := s.out.Write(buf); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *sseSink) finish(w http.ResponseWriter, res generate.Result, err error) int {
	if !s.begun {
		if err == nil {
			err = errors.New("generation produced no response")
		}
		status := statusFor(err)
		writeJSONError(w, status, err.Error())
		return status
	}
	if err != nil {
		// no [DONE]: the error line is the terminal event
		status := statusFor(err)
		_ = s.event(errorBody(status, err.Error()))
		return status
	}
	reason := string(res.FinishReason)
	_ = s.emit(types.ChatDelta{}, &reason)
	_ = s.line([]byte("[DONE]"))
	return http.StatusOK
}

// bufferSink collects the whole completion for stream=false.
type bufferSink struct {
	info  manager.RequestInfo
	begun bool
	text  strings.Builder
}

func (b *bufferSink) Start(info manager.RequestInfo) error {
	b.info = info
	b.begun = true
	return nil
}

func (b *bufferSink) Fragment(text string) error {
	b.text.WriteString(text)
	return nil
}

func (b *bufferSink) finish(w http.ResponseWriter, res generate.Result, err error) int {
	if err != nil {
		status := statusFor(err)
		writeJSONError(w, status, err.Error())
		return status
	}
	reason := string(res.FinishReason)
	writeJSON(w, http.StatusOK, types.ChatCompletionResponse{
		ID:      completionID(b.info),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   b.info.Model,
		Choices: []types.ChatChoice{{
			Index:        0,
			Message:      &types.ChatResponseMessage{Role: "assistant", Content: b.text.String()},
			FinishReason: &reason,
		}},
		Usage: &types.Usage{
			PromptTokens:     b.info.PromptTokens,
			CompletionTokens: res.Tokens,
			TotalTokens:      b.info.PromptTokens + res.Tokens,
		},
	})
	return http.StatusOK
}

func completionID(info manager.RequestInfo) string { return "chatcmpl-" + info.ID }
