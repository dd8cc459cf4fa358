package errorsx

import "testing"

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonSTTRequest)
	if Reason(err) != ReasonSTTRequest {
		t.Fatalf("expected reason %s, got %s", ReasonSTTRequest, Reason(err))
	}
	if !HasReason(err, ReasonSTTRequest) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonCodecParse)
	second := Wrap(first, ReasonAnswerRequest)
	if Reason(second) != ReasonCodecParse {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestReasonNil(t *testing.T) {
	if Wrap(nil, ReasonTTSRequest) != nil {
		t.Fatalf("expected nil wrap to stay nil")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil error")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
