package doubaospeech

import (
	"io"
)

// ================== Audio Encoding ==================

// AudioEncoding represents audio encoding format (TTS output)
type AudioEncoding string

const (
	EncodingPCM      AudioEncoding = "pcm"
	EncodingWAV      AudioEncoding = "wav"
	EncodingMP3      AudioEncoding = "mp3"
	EncodingOGG      AudioEncoding = "ogg_opus"
	EncodingAAC      AudioEncoding = "aac"
	EncodingM4A      AudioEncoding = "m4a"
	EncodingPCMS16LE AudioEncoding = "pcm_s16le" // For realtime, s16le format
	EncodingPCMF32LE AudioEncoding = "pcm"       // For realtime, f32le format
)

// ================== Sample Rate ==================

// SampleRate represents audio sample rate
type SampleRate int

const (
	SampleRate8000  SampleRate = 8000
	SampleRate16000 SampleRate = 16000
	SampleRate22050 SampleRate = 22050
	SampleRate24000 SampleRate = 24000
	SampleRate32000 SampleRate = 32000
	SampleRate44100 SampleRate = 44100
	SampleRate48000 SampleRate = 48000
)

// ================== Language ==================

// Language represents language code
type Language string

const (
	LanguageZhCN Language = "zh-CN" // Chinese (Mandarin)
	LanguageEnUS Language = "en-US" // English (US)
	LanguageEnGB Language = "en-GB" // English (UK)
	LanguageJaJP Language = "ja-JP" // Japanese
	LanguageKoKR Language = "ko-KR" // Korean
	LanguageEsES Language = "es-ES" // Spanish
	LanguageFrFR Language = "fr-FR" // French
	LanguageDeDE Language = "de-DE" // German
	LanguageItIT Language = "it-IT" // Italian
	LanguagePtBR Language = "pt-BR" // Portuguese (Brazil)
	LanguageRuRU Language = "ru-RU" // Russian
	LanguageArSA Language = "ar-SA" // Arabic
	LanguageThTH Language = "th-TH" // Thai
	LanguageViVN Language = "vi-VN" // Vietnamese
	LanguageIdID Language = "id-ID" // Indonesian
	LanguageMsMS Language = "ms-MS" // Malay
)

// ================== Common Structures ==================

// SubtitleSegment represents a subtitle segment
type SubtitleSegment struct {
	Text      string `json:"text"`       // Subtitle text
	StartTime int    `json:"start_time"` // Start time in milliseconds
	EndTime   int    `json:"end_time"`   // End time in milliseconds
}

// ================== Task ==================

// TaskStatus represents task status
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusSuccess    TaskStatus = "success"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Note: Error type is defined in error.go

// ================== TTS Types ==================

// TTSTextType represents text type
type TTSTextType string

const (
	TTSTextTypePlain TTSTextType = "plain" // Plain text
	TTSTextTypeSSML  TTSTextType = "ssml"  // SSML format
)

// TTSRequest represents TTS synthesis request
type TTSRequest struct {
	Text            string        `json:"text" yaml:"text"`
	TextType        TTSTextType   `json:"text_type,omitempty" yaml:"text_type,omitempty"`
	VoiceType       string        `json:"voice_type" yaml:"voice_type"`
	Cluster         string        `json:"cluster,omitempty" yaml:"cluster,omitempty"`
	Encoding        AudioEncoding `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	SampleRate      SampleRate    `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	SpeedRatio      float64       `json:"speed_ratio,omitempty" yaml:"speed_ratio,omitempty"`
	VolumeRatio     float64       `json:"volume_ratio,omitempty" yaml:"volume_ratio,omitempty"`
	PitchRatio      float64       `json:"pitch_ratio,omitempty" yaml:"pitch_ratio,omitempty"`
	Emotion         string        `json:"emotion,omitempty" yaml:"emotion,omitempty"`
	Language        Language      `json:"language,omitempty" yaml:"language,omitempty"`
	EnableSubtitle  bool          `json:"enable_subtitle,omitempty" yaml:"enable_subtitle,omitempty"`
	SilenceDuration int           `json:"silence_duration,omitempty" yaml:"silence_duration,omitempty"`
}

// TTSResponse represents TTS synthesis response
type TTSResponse struct {
	Audio     []byte            `json:"-"`
	Duration  int               `json:"duration"`
	Subtitles []SubtitleSegment `json:"subtitles,omitempty"`
	ReqID     string            `json:"reqid"`
}

// ToReader converts audio data to io.Reader
func (r *TTSResponse) ToReader() io.Reader {
	return nil // Implementation in tts.go
}

// TTSChunk represents streaming TTS chunk
type TTSChunk struct {
	Audio    []byte           `json:"-"`
	Sequence int32            `json:"sequence"`
	IsLast   bool             `json:"is_last"`
	Subtitle *SubtitleSegment `json:"subtitle,omitempty"`
	Duration int              `json:"duration,omitempty"`
}

// TTSDuplexConfig represents duplex session config
type TTSDuplexConfig struct {
	VoiceType   string        `json:"voice_type"`
	Encoding    AudioEncoding `json:"encoding,omitempty"`
	SampleRate  SampleRate    `json:"sample_rate,omitempty"`
	SpeedRatio  float64       `json:"speed_ratio,omitempty"`
	VolumeRatio float64       `json:"volume_ratio,omitempty"`
	PitchRatio  float64       `json:"pitch_ratio,omitempty"`
}

// AsyncTTSRequest represents async TTS request
type AsyncTTSRequest struct {
	Text        string        `json:"text"`
	TextType    TTSTextType   `json:"text_type,omitempty"`
	VoiceType   string        `json:"voice_type"`
	Encoding    AudioEncoding `json:"encoding,omitempty"`
	SampleRate  SampleRate    `json:"sample_rate,omitempty"`
	SpeedRatio  float64       `json:"speed_ratio,omitempty"`
	VolumeRatio float64       `json:"volume_ratio,omitempty"`
	PitchRatio  float64       `json:"pitch_ratio,omitempty"`
	CallbackURL string        `json:"callback_url,omitempty"`
}

// TTSAsyncResult represents async TTS result
type TTSAsyncResult struct {
	AudioURL  string            `json:"audio_url"`
	Duration  int               `json:"duration"`
	Subtitles []SubtitleSegment `json:"subtitles,omitempty"`
}

