package frame

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"

	apperrors "github.com/kbukum/chatstream/errors"
)

func drain(t *testing.T, src Source) ([]string, error) {
	t.Helper()
	var out []string
	for {
		f, err := src.Next(context.Background())
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, string(f))
	}
}

func TestSliceSource(t *testing.T) {
	src := NewStringSource([]string{"a", "b"})
	got, err := drain(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(got, ",") != "a,b" {
		t.Errorf("frames = %v", got)
	}
}

func TestSliceSource_TrailingError(t *testing.T) {
	boom := errors.New("connection reset")
	src := NewStringSource([]string{"a"}, WithTrailingError(boom))
	got, err := drain(t, src)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(got) != 1 {
		t.Errorf("frames = %v", got)
	}
}

func TestSliceSource_DelayHonoursContext(t *testing.T) {
	src := NewStringSource([]string{"a"}, WithFrameDelay(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestSliceSource_CloseUnblocks(t *testing.T) {
	src := NewStringSource([]string{"a"}, WithFrameDelay(time.Hour))
	go func() {
		time.Sleep(10 * time.Millisecond)
		src.Close()
	}()
	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want EOF after Close", err)
	}
}

func TestLineSource(t *testing.T) {
	body := io.NopCloser(strings.NewReader("data: {\"a\":1}\r\n\r\n\n{\"b\":2}\nlast"))
	got, err := drain(t, NewLineSource(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{`data: {"a":1}`, `{"b":2}`, "last"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("frames = %q, want %q", got, want)
	}
}

func encodeMessages(t *testing.T, msgs ...eventstream.Message) io.ReadCloser {
	t.Helper()
	var buf bytes.Buffer
	enc := eventstream.NewEncoder()
	for _, m := range msgs {
		if err := enc.Encode(&buf, m); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	return io.NopCloser(&buf)
}

func eventMessage(eventType string, payload string) eventstream.Message {
	var h eventstream.Headers
	h.Set(headerMessageType, eventstream.StringValue("event"))
	h.Set(headerEventType, eventstream.StringValue(eventType))
	h.Set(":content-type", eventstream.StringValue("application/json"))
	return eventstream.Message{Headers: h, Payload: []byte(payload)}
}

func TestEventStreamSource_Chunks(t *testing.T) {
	inner := `{"contentBlockDelta":{"delta":{"text":"Salut"}}}`
	body := encodeMessages(t,
		eventMessage("chunk", `{"bytes":"`+b64(inner)+`"}`),
		eventMessage("chunk", `{"bytes":"`+b64(`{"messageStop":{"stopReason":"end_turn"}}`)+`"}`),
	)
	src := NewEventStreamSource("bedrock", body)
	defer src.Close()

	frames, err := drain(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}

	d := newTestDecoder()
	first, ok := d.Decode([]byte(frames[0]))
	if !ok || first.Text != "Salut" {
		t.Errorf("first delta = %+v", first)
	}
	last, ok := d.Decode([]byte(frames[1]))
	if !ok || !last.Final {
		t.Errorf("last delta = %+v, want final", last)
	}
}

func TestEventStreamSource_Exception(t *testing.T) {
	var h eventstream.Headers
	h.Set(headerMessageType, eventstream.StringValue("exception"))
	h.Set(headerExceptionType, eventstream.StringValue("throttlingException"))
	body := encodeMessages(t,
		eventMessage("chunk", `{"bytes":"`+b64(`{"outputText":"a"}`)+`"}`),
		eventstream.Message{Headers: h, Payload: []byte(`{"message":"Too many requests"}`)},
	)

	frames, err := drain(t, NewEventStreamSource("bedrock", body))
	if len(frames) != 1 {
		t.Errorf("got %d frames before the exception, want 1", len(frames))
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("err = %v, want AppError", err)
	}
	if appErr.Code != apperrors.ErrCodeUpstream || appErr.Message != "Too many requests" {
		t.Errorf("unexpected error: %+v", appErr)
	}
	if appErr.HTTPStatus != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", appErr.HTTPStatus)
	}
}

func TestEventStreamSource_ErrorMessage(t *testing.T) {
	var h eventstream.Headers
	h.Set(headerMessageType, eventstream.StringValue("error"))
	h.Set(headerErrorCode, eventstream.StringValue("InternalFailure"))
	h.Set(headerErrorMessage, eventstream.StringValue("stream broke"))

	_, err := drain(t, NewEventStreamSource("bedrock", encodeMessages(t, eventstream.Message{Headers: h})))
	if !apperrors.HasCode(err, apperrors.ErrCodeUpstream) {
		t.Fatalf("err = %v, want upstream error", err)
	}
	if !strings.Contains(err.Error(), "stream broke") {
		t.Errorf("err = %v, want message carried", err)
	}
}

func TestEventStreamSource_Truncated(t *testing.T) {
	full := encodeMessages(t, eventMessage("chunk", `{"outputText":"a"}`))
	raw, _ := io.ReadAll(full)
	body := io.NopCloser(bytes.NewReader(raw[:len(raw)-3]))

	_, err := drain(t, NewEventStreamSource("bedrock", body))
	if !apperrors.HasCode(err, apperrors.ErrCodeUpstream) {
		t.Errorf("err = %v, want upstream error for truncated message", err)
	}
}
