package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBotStatusAdvances(t *testing.T) {
	tests := []struct {
		prev, next BotStatus
		want       bool
	}{
		{BotStatusPending, BotStatusScheduled, true},
		{BotStatusScheduled, BotStatusJoined, true},
		{BotStatusJoined, BotStatusTranscribing, true},
		{BotStatusTranscribing, BotStatusCompleted, true},
		{BotStatusPending, BotStatusCompleted, true},
		{BotStatusScheduled, BotStatusFailed, true},

		// no regressions
		{BotStatusTranscribing, BotStatusJoined, false},
		{BotStatusJoined, BotStatusScheduled, false},
		{BotStatusScheduled, BotStatusScheduled, false},

		// terminal states never move
		{BotStatusCompleted, BotStatusFailed, false},
		{BotStatusFailed, BotStatusCompleted, false},
		{BotStatusCompleted, BotStatusTranscribing, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.next.Advances(tt.prev), "%s -> %s", tt.prev, tt.next)
	}
}

func TestHasImportantData(t *testing.T) {
	ref := "bot-1"
	transcript := "hello"
	project := "proj-1"

	assert.False(t, (&Meeting{BotStatus: BotStatusPending}).HasImportantData())
	assert.True(t, (&Meeting{BotStatus: BotStatusScheduled}).HasImportantData())
	assert.True(t, (&Meeting{BotStatus: BotStatusPending, BotRef: &ref}).HasImportantData())
	assert.True(t, (&Meeting{BotStatus: BotStatusPending, Transcript: &transcript}).HasImportantData())
	assert.True(t, (&Meeting{BotStatus: BotStatusPending, ProjectID: &project}).HasImportantData())
}
