package upscale

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestError(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := error(&Error{Kind: KindCorruptContainer, Stage: StateDecoding, Frame: 3, Err: cause})

	if !errors.Is(err, ErrCorruptContainer) {
		t.Error("errors.Is(err, ErrCorruptContainer) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if errors.Is(err, ErrEncode) {
		t.Error("error matches a foreign kind")
	}
	if got := err.Error(); !strings.Contains(got, "decoding, frame 3") || !strings.HasSuffix(got, cause.Error()) {
		t.Errorf("Error() = %q", got)
	}

	wrapped := fmt.Errorf("job 7: %w", err)
	if KindOf(wrapped) != KindCorruptContainer {
		t.Errorf("KindOf(wrapped) = %v", KindOf(wrapped))
	}
	if KindOf(io.EOF) != 0 {
		t.Error("KindOf(non-conversion error) != 0")
	}
}

func TestError_IdleStage(t *testing.T) {
	err := &Error{Kind: KindInvalidScale, Stage: StateIdle, Frame: -1}
	if got := err.Error(); got != ErrInvalidScale.Error() {
		t.Errorf("Error() = %q, want %q", got, ErrInvalidScale.Error())
	}
	if !errors.Is(err, ErrInvalidScale) {
		t.Error("errors.Is(err, ErrInvalidScale) = false")
	}
}

func TestKindString(t *testing.T) {
	want := map[Kind]string{
		KindUnsupportedFormat: "UnsupportedFormat",
		KindInvalidScale:      "InvalidScale",
		KindCorruptContainer:  "CorruptContainer",
		KindEncode:            "EncodeError",
		KindCanceled:          "Canceled",
		Kind(42):              "Kind(42)",
	}
	for k, s := range want {
		if k.String() != s {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), k.String(), s)
		}
	}
}

func TestRecorderReplay(t *testing.T) {
	src := &Recorder{}
	src.Report(Event{Stage: StateDecoding, Message: "a"})
	src.Report(Event{Stage: StateDone, Message: "b", Terminal: true})

	var got []string
	src.Replay(ReporterFunc(func(e Event) { got = append(got, e.Message) }))
	if strings.Join(got, ",") != "a,b" {
		t.Fatalf("replayed %v", got)
	}
	if !StateDone.Terminal() || !StateFailed.Terminal() || StateEncoding.Terminal() {
		t.Fatal("Terminal() mismatch")
	}
}
