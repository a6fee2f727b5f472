package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonTranscode   ReasonCode = "transcode"
	ReasonAudioDecode ReasonCode = "audio_decode"
	ReasonAudioModel  ReasonCode = "audio_model"
	ReasonClassMap    ReasonCode = "classmap_load"

	ReasonVisionAuth        ReasonCode = "vision_auth"
	ReasonVisionClassify    ReasonCode = "vision_classify"
	ReasonVisionRateLimit   ReasonCode = "vision_rate_limit"
	ReasonVisionCircuitOpen ReasonCode = "vision_circuit_open"

	ReasonCaptureRecord ReasonCode = "capture_record"
	ReasonTransportRead ReasonCode = "transport_read"
)

// Error makes a code usable as an errors.Is target.
func (r ReasonCode) Error() string { return string(r) }
