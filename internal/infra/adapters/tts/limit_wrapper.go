package tts

import (
	"context"

	"telegram-tts-bot/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.TTSService = (*limitedTTS)(nil)

// limitedTTS bounds how many artifact downloads run at once across all
// polling sessions. Other calls pass straight through.
type limitedTTS struct {
	adapter.TTSService
	sem chan struct{}
}

func NewLimitedTTS(inner adapter.TTSService, maxConcurrent int) adapter.TTSService {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedTTS{
		TTSService: inner,
		sem:        make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedTTS) DownloadArtifact(ctx context.Context, jobID, itemID string) ([]byte, string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.TTSService.DownloadArtifact(ctx, jobID, itemID)
}
