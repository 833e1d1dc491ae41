package usecase

import (
	"fmt"
	"strings"

	meetingdomain "github.com/allan-cais/besunny-ai-sub007/internal/meeting/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/syncerrors"
)

// providerStateMap translates the bot provider's state vocabulary onto the
// local status enum. Raw provider strings never reach storage.
var providerStateMap = map[string]meetingdomain.BotStatus{
	"scheduled": meetingdomain.BotStatusScheduled,
	"ready":     meetingdomain.BotStatusScheduled,
	"joining":   meetingdomain.BotStatusScheduled,

	"in_waiting_room":      meetingdomain.BotStatusJoined,
	"joined":               meetingdomain.BotStatusJoined,
	"joined_not_recording": meetingdomain.BotStatusJoined,

	"joined_recording":  meetingdomain.BotStatusTranscribing,
	"in_call_recording": meetingdomain.BotStatusTranscribing,
	"recording":         meetingdomain.BotStatusTranscribing,
	"transcribing":      meetingdomain.BotStatusTranscribing,

	"call_ended":                meetingdomain.BotStatusCompleted,
	"ended":                     meetingdomain.BotStatusCompleted,
	"post_processing":           meetingdomain.BotStatusCompleted,
	"post_processing_completed": meetingdomain.BotStatusCompleted,
	"completed":                 meetingdomain.BotStatusCompleted,

	"fatal_error":  meetingdomain.BotStatusFailed,
	"failed":       meetingdomain.BotStatusFailed,
	"errored":      meetingdomain.BotStatusFailed,
	"data_deleted": meetingdomain.BotStatusFailed,
}

// MapProviderState maps one provider state string. Unknown vocabulary maps
// conservatively to failed and reports the gap so the table can be extended.
func MapProviderState(state string) (meetingdomain.BotStatus, error) {
	if status, ok := providerStateMap[strings.ToLower(strings.TrimSpace(state))]; ok {
		return status, nil
	}
	return meetingdomain.BotStatusFailed, fmt.Errorf("%w: provider bot state %q", syncerrors.ErrMappingUnknown, state)
}
