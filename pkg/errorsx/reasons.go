package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// Transport: malformed or unexpected inbound messages. The session
	// loop skips these and keeps consuming.
	ReasonTransportDecode           ReasonCode = "transport_decode"
	ReasonTransportSend             ReasonCode = "transport_send"
	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"

	// Codec: corrupt or unsupported audio. Abandons the current turn only.
	ReasonCodecParse  ReasonCode = "codec_parse"
	ReasonCodecFormat ReasonCode = "codec_format"

	// External services: per-step turn policy applies.
	ReasonSTTRequest    ReasonCode = "stt_request"
	ReasonSTTTimeout    ReasonCode = "stt_timeout"
	ReasonAnswerRequest ReasonCode = "answer_request"
	ReasonAnswerTimeout ReasonCode = "answer_timeout"
	ReasonTTSRequest    ReasonCode = "tts_request"
	ReasonTTSTimeout    ReasonCode = "tts_timeout"

	ReasonDialRequest ReasonCode = "dial_request"
)
