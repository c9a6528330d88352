package model

import "time"

// JobStatus is the coarse status the TTS service reports for a whole job.
type JobStatus string

const (
	JobStatusQueued        JobStatus = "queued"
	JobStatusRunning       JobStatus = "running"
	JobStatusProcessing    JobStatus = "processing"
	JobStatusCompleted     JobStatus = "completed"
	JobStatusPartialFailed JobStatus = "partial_failed"
	JobStatusFailed        JobStatus = "failed"
	JobStatusCancelled     JobStatus = "cancelled"
)

// IsTerminal reports whether no further progress can happen for the job.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusPartialFailed, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusQueued     ItemStatus = "queued"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusFailed     ItemStatus = "failed"
	ItemStatusCancelled  ItemStatus = "cancelled"
)

type ArtifactKind string

const (
	ArtifactKindVoice    ArtifactKind = "voice"
	ArtifactKindDocument ArtifactKind = "document"
)

// Extension returns the file extension used when an artifact of this kind
// is delivered to a chat.
func (k ArtifactKind) Extension() string {
	if k == ArtifactKindVoice {
		return ".ogg"
	}
	return ".mp3"
}

// ArtifactDescriptor describes a finished artifact without its bytes.
type ArtifactDescriptor struct {
	Kind        ArtifactKind `json:"kind"`
	MimeType    string       `json:"mime_type"`
	SizeBytes   int64        `json:"size_bytes"`
	DownloadURL string       `json:"download_url"`
}

// JobItem is one URL's unit of work inside a job.
type JobItem struct {
	ItemID   string              `json:"item_id"`
	URL      string              `json:"url"`
	Status   ItemStatus          `json:"status"`
	Summary  string              `json:"summary,omitempty"`
	Filename string              `json:"filename,omitempty"`
	Artifact *ArtifactDescriptor `json:"artifact,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Deliverable reports whether the item finished with an artifact.
func (i *JobItem) Deliverable() bool {
	return i.Status == ItemStatusCompleted && i.Artifact != nil
}

// DeliveryFilename is the item's suggested base name, or its id, plus the
// extension implied by the artifact kind.
func (i *JobItem) DeliveryFilename() string {
	base := i.Filename
	if base == "" {
		base = i.ItemID
	}
	kind := ArtifactKindDocument
	if i.Artifact != nil {
		kind = i.Artifact.Kind
	}
	return base + kind.Extension()
}

// JobSnapshot is one observation of a job returned by the status query.
type JobSnapshot struct {
	JobID        string    `json:"job_id"`
	Status       JobStatus `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Items        []JobItem `json:"items"`
}

// FailedItems returns the items that reached the failed status.
func (s *JobSnapshot) FailedItems() []JobItem {
	var failed []JobItem
	for _, it := range s.Items {
		if it.Status == ItemStatusFailed {
			failed = append(failed, it)
		}
	}
	return failed
}

// Artifact is a downloaded artifact ready to be sent.
type Artifact struct {
	Kind        ArtifactKind
	Filename    string
	ContentType string
	Caption     string
	Data        []byte
}

// PendingJob is the crash-recovery record for a job being polled.
type PendingJob struct {
	JobID     string    `json:"job_id"`
	ChatID    int64     `json:"chat_id"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
