package frames

import (
	"sync"
	"time"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindPCM   Kind = "pcm"
	KindImage Kind = "image"
)

const (
	MetaUserID   = "user_id"
	MetaTraceID  = "trace_id"
	MetaSource   = "source"
	MetaFilename = "filename"
	MetaMIME     = "mime"
)

// Sources a frame can originate from.
const (
	SourceStream = "stream"
	SourcePoll   = "poll"
	SourceUpload = "upload"
)

// Frame is one independently classifiable unit of captured input.
type Frame interface {
	Kind() Kind
	PTS() int64
	Meta() map[string]string
}

// AudioFrame carries one complete encoded clip (ogg, webm, wav...) whose
// container is sniffed by the transcoder.
type AudioFrame struct {
	pts  int64
	data []byte
	meta map[string]string
}

func NewAudioFrame(userID string, pts int64, data []byte, meta map[string]string) AudioFrame {
	return AudioFrame{
		pts:  pts,
		data: data,
		meta: mergeMeta(userID, meta),
	}
}

func (a AudioFrame) Kind() Kind              { return KindAudio }
func (a AudioFrame) PTS() int64              { return a.pts }
func (a AudioFrame) Meta() map[string]string { return cloneMeta(a.meta) }
func (a AudioFrame) Data() []byte            { return append([]byte(nil), a.data...) }
func (a AudioFrame) RawPayload() []byte      { return a.data }
func (a AudioFrame) UserID() string          { return a.meta[MetaUserID] }

// PCMFrame carries decoded mono float32 samples.
type PCMFrame struct {
	pts     int64
	samples []float32
	rate    int
	meta    map[string]string
}

func NewPCMFrame(userID string, pts int64, samples []float32, rate int, meta map[string]string) PCMFrame {
	return PCMFrame{
		pts:     pts,
		samples: samples,
		rate:    rate,
		meta:    mergeMeta(userID, meta),
	}
}

func (p PCMFrame) Kind() Kind              { return KindPCM }
func (p PCMFrame) PTS() int64              { return p.pts }
func (p PCMFrame) Meta() map[string]string { return cloneMeta(p.meta) }
func (p PCMFrame) Samples() []float32      { return p.samples }
func (p PCMFrame) Rate() int               { return p.rate }
func (p PCMFrame) UserID() string          { return p.meta[MetaUserID] }

// Duration is the clip length implied by the sample count.
func (p PCMFrame) Duration() time.Duration {
	if p.rate <= 0 {
		return 0
	}
	return time.Duration(len(p.samples)) * time.Second / time.Duration(p.rate)
}

type ImageFrame struct {
	pts  int64
	data []byte
	mime string
	meta map[string]string
}

func NewImageFrame(userID string, pts int64, data []byte, mime string, meta map[string]string) ImageFrame {
	return ImageFrame{
		pts:  pts,
		data: data,
		mime: mime,
		meta: mergeMeta(userID, meta),
	}
}

func (i ImageFrame) Kind() Kind              { return KindImage }
func (i ImageFrame) PTS() int64              { return i.pts }
func (i ImageFrame) Meta() map[string]string { return cloneMeta(i.meta) }
func (i ImageFrame) Data() []byte            { return append([]byte(nil), i.data...) }
func (i ImageFrame) RawPayload() []byte      { return i.data }
func (i ImageFrame) MIME() string            { return i.mime }
func (i ImageFrame) UserID() string          { return i.meta[MetaUserID] }

// PTSGen hands out monotonically increasing timestamps per user.
type PTSGen struct {
	mu    sync.Mutex
	value map[string]int64
}

func NewPTSGen() *PTSGen {
	return &PTSGen{value: make(map[string]int64)}
}

func (g *PTSGen) Next(userID string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now().UnixNano()
	v := g.value[userID] + 1
	if now > v {
		v = now
	}
	g.value[userID] = v
	return v
}

func mergeMeta(userID string, meta map[string]string) map[string]string {
	out := make(map[string]string, 2+len(meta))
	for k, v := range meta {
		out[k] = v
	}
	out[MetaUserID] = userID
	return out
}

func cloneMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
