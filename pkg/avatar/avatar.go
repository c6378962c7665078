// Package avatar holds the catalog of tutor personas. Each avatar binds a
// voice, an accent, and the system instruction that shapes the tutor's
// conversational style. The catalog is immutable; an avatar is selected once
// per session and never mutated.
package avatar

import "strings"

// Avatar describes one tutor persona.
type Avatar struct {
	// Name identifies the avatar in the catalog and in session records.
	Name string

	// Accent is the spoken English variety, shown in the picker.
	Accent string

	// VoiceName selects the prebuilt voice on the generative-audio endpoint.
	VoiceName string

	// SystemInstruction shapes the tutor's conversational behavior for the
	// live session.
	SystemInstruction string

	// Description is the one-line blurb shown in the picker.
	Description string

	// ImageURL points at the avatar's portrait asset.
	ImageURL string
}

const instructionPreamble = `You are an English tutor having a spoken conversation with a learner.
Keep replies short and conversational, one or two sentences. Gently correct
mistakes by restating the learner's sentence correctly, then continue the
conversation. Ask follow-up questions to keep the learner talking. `

var catalog = []Avatar{
	{
		Name:              "Maya",
		Accent:            "American",
		VoiceName:         "Aoede",
		SystemInstruction: instructionPreamble + `Your name is Maya. You speak with a friendly American accent and like talking about travel, food, and everyday life.`,
		Description:       "Friendly and patient, great for everyday conversation practice.",
		ImageURL:          "/assets/avatars/maya.png",
	},
	{
		Name:              "Oliver",
		Accent:            "British",
		VoiceName:         "Charon",
		SystemInstruction: instructionPreamble + `Your name is Oliver. You speak with a British accent, enjoy dry humour, and like discussing books, history, and current events.`,
		Description:       "Witty conversationalist for learners who want a challenge.",
		ImageURL:          "/assets/avatars/oliver.png",
	},
	{
		Name:              "Priya",
		Accent:            "Indian",
		VoiceName:         "Kore",
		SystemInstruction: instructionPreamble + `Your name is Priya. You speak clear Indian English and focus on workplace and interview practice, keeping the tone professional but warm.`,
		Description:       "Professional coach for business English and interviews.",
		ImageURL:          "/assets/avatars/priya.png",
	},
	{
		Name:              "Jack",
		Accent:            "Australian",
		VoiceName:         "Puck",
		SystemInstruction: instructionPreamble + `Your name is Jack. You speak with a laid-back Australian accent and keep things casual, using common idioms and explaining them when asked.`,
		Description:       "Laid-back chat partner who teaches everyday idioms.",
		ImageURL:          "/assets/avatars/jack.png",
	},
}

// All returns the catalog in display order. The returned slice is a copy.
func All() []Avatar {
	out := make([]Avatar, len(catalog))
	copy(out, catalog)
	return out
}

// Default returns the avatar used when the caller expresses no preference.
func Default() Avatar {
	return catalog[0]
}

// ByName finds an avatar by its catalog name, case-insensitively.
func ByName(name string) (Avatar, bool) {
	for _, a := range catalog {
		if strings.EqualFold(a.Name, strings.TrimSpace(name)) {
			return a, true
		}
	}
	return Avatar{}, false
}
