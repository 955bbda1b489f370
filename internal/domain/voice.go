package domain

import "time"

// Voice is one selectable entry of the voice catalog.
type Voice struct {
	ID              string `json:"id"`
	DisplayName     string `json:"name"`
	ProviderVoiceID string `json:"voice_id"`
}

// Catalog is the result of a catalog listing. Unfiltered is set when no voice
// carried the event tag and the full provider list was returned instead.
type Catalog struct {
	Voices     []Voice `json:"voices"`
	Unfiltered bool    `json:"unfiltered"`
}

// Find looks a voice up by catalog id or provider voice id.
func (c Catalog) Find(id string) (Voice, bool) {
	for _, v := range c.Voices {
		if v.ID == id || v.ProviderVoiceID == id {
			return v, true
		}
	}
	return Voice{}, false
}

// RegisteredVoice is a row of the operator-maintained voice registry.
type RegisteredVoice struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	VoiceID   string    `json:"voice_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (r RegisteredVoice) AsVoice() Voice {
	return Voice{ID: r.ID, DisplayName: r.Name, ProviderVoiceID: r.VoiceID}
}
