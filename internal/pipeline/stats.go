package pipeline

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/opensesh/sessionhub/internal/apperr"
	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/provider"
)

// SessionTokenStats aggregates the token usage of one session.
type SessionTokenStats struct {
	SessionID           string         `json:"sessionId"`
	Summary             string         `json:"summary,omitempty"`
	InputTokens         int            `json:"inputTokens"`
	OutputTokens        int            `json:"outputTokens"`
	CacheCreationTokens int            `json:"cacheCreationTokens"`
	CacheReadTokens     int            `json:"cacheReadTokens"`
	TotalTokens         int            `json:"totalTokens"`
	MessageCount        int            `json:"messageCount"`
	TokensByModel       map[string]int `json:"tokensByModel,omitempty"`
	FirstMessageAt      time.Time      `json:"firstMessageAt"`
	LastMessageAt       time.Time      `json:"lastMessageAt"`
}

// SessionStats loads the whole session and aggregates its token usage.
func (p *Pipeline) SessionStats(ctx context.Context, session model.Session) (*SessionTokenStats, error) {
	adapter, err := p.registry.Get(session.ProviderID)
	if err != nil {
		return nil, err
	}

	page, err := adapter.LoadMessages(ctx, session.Metadata.FilePath, session.ID, provider.LoadOptions{
		Limit:     maxLoadAll,
		SortOrder: provider.SortDescending,
	})
	if err != nil {
		return nil, err
	}
	if len(page.Messages) == 0 {
		return nil, apperr.New(apperr.CodeCorruptData, "no valid messages in session %s", session.ID)
	}

	stats := &SessionTokenStats{
		SessionID:    session.ID,
		Summary:      session.Metadata.Summary,
		MessageCount: len(page.Messages),
	}
	for _, m := range page.Messages {
		if !m.Timestamp.IsZero() {
			if stats.FirstMessageAt.IsZero() || m.Timestamp.Before(stats.FirstMessageAt) {
				stats.FirstMessageAt = m.Timestamp
			}
			if m.Timestamp.After(stats.LastMessageAt) {
				stats.LastMessageAt = m.Timestamp
			}
		}
		if m.Tokens == nil {
			continue
		}
		stats.InputTokens += m.Tokens.InputTokens
		stats.OutputTokens += m.Tokens.OutputTokens
		stats.CacheCreationTokens += m.Tokens.CacheCreationTokens
		stats.CacheReadTokens += m.Tokens.CacheReadTokens
		if m.Model != "" {
			if stats.TokensByModel == nil {
				stats.TokensByModel = make(map[string]int)
			}
			stats.TokensByModel[m.Model] += m.Tokens.Total()
		}
	}
	stats.TotalTokens = stats.InputTokens + stats.OutputTokens +
		stats.CacheCreationTokens + stats.CacheReadTokens
	return stats, nil
}

// ProjectStats aggregates token stats for every session of a project,
// sorted heaviest first. Sessions whose stats fail to load are skipped.
func (p *Pipeline) ProjectStats(ctx context.Context, providerID, projectPath, projectID string) ([]SessionTokenStats, error) {
	sessions, err := p.Sessions(ctx, providerID, projectPath, projectID, false)
	if err != nil {
		return nil, err
	}

	stats := make([]SessionTokenStats, 0, len(sessions))
	for _, s := range sessions {
		st, err := p.SessionStats(ctx, s)
		if err != nil {
			p.logger.Debug("skipping session in project stats",
				zap.String("session", s.ID), zap.Error(err))
			continue
		}
		stats = append(stats, *st)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].TotalTokens > stats[j].TotalTokens
	})
	return stats, nil
}
