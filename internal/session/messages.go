package session

import "encoding/json"

const (
	messageTypeConfig     = "config"
	messageTypeAudioChunk = "audio_chunk"
	messageTypeExport     = "export"
	messageTypeClear      = "clear"

	eventTypeConnected       = "connected"
	eventTypeStatus          = "status"
	eventTypeTranscription   = "transcription"
	eventTypeProviderChanged = "provider_changed"
	eventTypeExportResult    = "export_result"
	eventTypeError           = "error"
)

const (
	statusChunkQueuedFormat   = "Chunk #%d queued (%d in queue)"
	statusChunksPendingFormat = "%d chunk(s) queued"
	statusProcessingFormat    = "Processing chunk #%d: %.1f KB (%.1fs audio) at %.1fs"
	statusChunkDoneFormat     = "Chunk #%d done: %d seg in %.1fs (RTF %.2fx) | speakers: [%s]"
	statusConfigUpdatedFormat = "Configuration updated (threshold: %.2f)"
	statusSessionCleared      = "Session cleared"
	errorTranscriptionFormat  = "Transcription failed: %v"
	errorInvalidJSON          = "Invalid JSON message"
	errorUnknownTypeFormat    = "Unknown message type: %s"
	errorNoAudioData          = "No audio data provided"
	errorInvalidAudioFormat   = "Invalid audio data: %v"
	errorUnknownExportFormat  = "Unknown export format: %s"
	errorInvalidConfigFormat  = "Invalid configuration: %v"
	errorProviderSwitchFormat = "Provider switch failed: %v"
	errorSessionStartFormat   = "Session could not be started: %v"
)

type inboundMessage struct {
	Type string `json:"type"`
}

type configMessage struct {
	EnableDiarization   *bool           `json:"enable_diarization"`
	SimilarityThreshold *float64        `json:"similarity_threshold"`
	Provider            *string         `json:"provider"`
	Model               *string         `json:"model"`
	Options             json.RawMessage `json:"options"`
}

type audioChunkMessage struct {
	Data       string  `json:"data"`
	ChunkStart float64 `json:"chunk_start"`
}

type exportMessage struct {
	Format string `json:"format"`
}

type connectedEvent struct {
	Type                 string  `json:"type"`
	SessionID            string  `json:"session_id"`
	Provider             string  `json:"provider"`
	ProviderType         string  `json:"provider_type"`
	Model                string  `json:"model"`
	DiarizationAvailable bool    `json:"diarization_available"`
	DiarizationEnabled   bool    `json:"diarization_enabled"`
	SimilarityThreshold  float64 `json:"similarity_threshold"`
}

type statusEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type transcriptionEvent struct {
	Type     string              `json:"type"`
	Messages []TranscriptMessage `json:"messages"`
}

type providerChangedEvent struct {
	Type                 string `json:"type"`
	Provider             string `json:"provider"`
	ProviderType         string `json:"provider_type"`
	Model                string `json:"model"`
	DiarizationAvailable bool   `json:"diarization_available"`
}

type exportResultEvent struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newStatusEvent(message string) statusEvent {
	return statusEvent{Type: eventTypeStatus, Message: message}
}

func newErrorEvent(message string) errorEvent {
	return errorEvent{Type: eventTypeError, Message: message}
}

func newTranscriptionEvent(messages []TranscriptMessage) transcriptionEvent {
	if messages == nil {
		messages = []TranscriptMessage{}
	}
	return transcriptionEvent{Type: eventTypeTranscription, Messages: messages}
}
