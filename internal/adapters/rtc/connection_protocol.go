package rtc

import (
	"encoding/json"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/recbit/meetrec/internal/domain"
)

// handleControlMessage runs on the dispatch loop only. Malformed payloads
// are logged and dropped; they never affect connection state.
func (c *Connection) handleControlMessage(raw []byte) {
	env, err := decodeMessage(raw)
	if err != nil {
		log.Warn().Err(err).Str("module", "rtc").Str("label", c.label).Msg("control message dropped")
		return
	}

	switch env.Type {
	case msgParticipantJoined:
		var p participantJoinedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("type", env.Type).Msg("bad payload")
			return
		}
		c.applyJoined(p)
	case msgParticipantLeft:
		var p participantLeftPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("type", env.Type).Msg("bad payload")
			return
		}
		c.applyLeft(p.ID)
	case msgParticipantUpdate:
		var p participantUpdatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("type", env.Type).Msg("bad payload")
			return
		}
		c.applyUpdate(p)
	case msgMediaUpdate:
		var p mediaUpdatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("type", env.Type).Msg("bad payload")
			return
		}
		c.applyMedia(p)
	case msgPresentationStarted:
		var p presentationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("type", env.Type).Msg("bad payload")
			return
		}
		c.applyPresentation(p.PresenterID, true)
	case msgPresentationStopped:
		var p presentationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("type", env.Type).Msg("bad payload")
			return
		}
		c.applyPresentation(p.PresenterID, false)
	default:
		// Forward compatibility: unknown types are not an error.
		log.Info().Str("module", "rtc").Str("type", env.Type).Msg("unknown control message ignored")
	}
}

func (c *Connection) applyJoined(p participantJoinedPayload) {
	participant, err := domain.NewParticipant(p.ID, p.DisplayName)
	if err != nil {
		log.Warn().Err(err).Str("module", "rtc").Str("label", c.label).Msg("participant_joined dropped")
		return
	}
	participant.AudioEnabled = p.AudioEnabled
	participant.VideoEnabled = p.VideoEnabled

	c.mu.Lock()
	defer c.mu.Unlock()
	c.participants[p.ID] = participant
}

func (c *Connection) applyLeft(id domain.ParticipantID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.participants, id)
}

// applyUpdate merges only the supplied fields onto the existing record.
func (c *Connection) applyUpdate(p participantUpdatePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.participants[p.ID]
	if !ok {
		created, err := domain.NewParticipant(p.ID, "")
		if err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("label", c.label).Msg("participant_update dropped")
			return
		}
		existing = created
		c.participants[p.ID] = existing
	}
	if p.DisplayName != nil {
		existing.DisplayName = *p.DisplayName
	}
	if p.Presenting != nil {
		existing.Presenting = *p.Presenting
	}
	if p.AudioEnabled != nil {
		existing.AudioEnabled = *p.AudioEnabled
	}
	if p.VideoEnabled != nil {
		existing.VideoEnabled = *p.VideoEnabled
	}
}

func (c *Connection) applyMedia(p mediaUpdatePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.participants[p.ID]
	if !ok {
		return
	}
	existing.AudioEnabled = p.AudioEnabled
	existing.VideoEnabled = p.VideoEnabled
}

func (c *Connection) applyPresentation(id domain.ParticipantID, presenting bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.participants[id]; ok {
		existing.Presenting = presenting
	}
}

func (c *Connection) Participants() []domain.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Participant, 0, len(c.participants))
	for _, p := range c.participants {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Connection) ParticipantIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.participants))
	for id := range c.participants {
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out
}
