package domain

// Persona is the single configuration record describing the character the
// bot plays and the voice it speaks with.
type Persona struct {
	Name         string `validate:"required"`
	Prompt       string `validate:"required"`
	VoiceActorID string
	VoiceStyleID int    `validate:"gte=0"`
	VoiceSpeed   string `validate:"omitempty,numeric"`
}

// DefaultPersona is used when nothing overrides it.
var DefaultPersona = Persona{
	Name:         "みなみ",
	Prompt:       "あなたは21歳の女性「みなみ」。口調はゆるくて、ため口で話す。相手を癒すような、やさしく包み込む雰囲気を大事にして。語尾に「〜ね」「〜よ」「〜かな？」などをつけることが多く、敬語は使わず、少し甘えたような話し方をする。",
	VoiceActorID: "75ad89de-03df-419f-96f0-02c061609d49",
	VoiceStyleID: 58,
	VoiceSpeed:   "0.9",
}

// SystemPrompt builds the system message for a conversation with addressee.
func (p Persona) SystemPrompt(addressee string) string {
	return addressee + "と会話するあなたは、" + p.Prompt
}
