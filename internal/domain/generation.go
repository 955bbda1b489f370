package domain

// ArtifactPlaceholder is stored instead of binary image and audio payloads.
const ArtifactPlaceholder = "stored_locally_base64_skipped"

// GenerationRecord is the history row written after a successful video.
type GenerationRecord struct {
	VoiceID   string
	VoiceName string
	Text      string
	VideoURL  string
}
