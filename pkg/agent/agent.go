// Package agent defines the personas a call can be answered with.
//
// A Profile bundles the system prompt, spoken greeting, voice, and
// capability flags for one persona. The built-in profiles are embedded
// in the binary; deployments can layer their own on top from a
// directory of JSON files. The relay selects a profile per call through
// the stream's custom parameters, falling back to the default.
package agent

import (
	"fmt"
	"strings"
)

// DefaultProfileID is the profile used when a call names none.
const DefaultProfileID = "default"

// Profile describes one answering persona.
type Profile struct {
	// ID is the stable identifier callers select by.
	ID string `json:"id"`

	// Name is the human-readable profile name.
	Name string `json:"name"`

	// Description summarizes what the persona is for.
	Description string `json:"description"`

	// SystemPrompt is the model's standing instruction for the call.
	SystemPrompt string `json:"system_prompt"`

	// Greeting is the line spoken when the call connects. Empty means
	// the model waits for the caller to speak first.
	Greeting string `json:"greeting"`

	// Voice overrides the default prebuilt voice when non-empty.
	Voice string `json:"voice,omitempty"`

	// Language is the BCP-47 speech code for the call, like "en-US".
	Language string `json:"language,omitempty"`

	// Model overrides the default model when non-empty.
	Model string `json:"model,omitempty"`

	// MayEndCall permits the agent to wrap up and say goodbye on its
	// own once the caller's needs are met.
	MayEndCall bool `json:"may_end_call,omitempty"`

	// MayTransfer permits the agent to offer a handoff to a person.
	MayTransfer bool `json:"may_transfer,omitempty"`

	// DetectVoicemail tells the agent how to behave when an answering
	// machine picks up instead of a person.
	DetectVoicemail bool `json:"detect_voicemail,omitempty"`
}

// Instructions returns the full standing instruction for the model:
// the system prompt followed by one policy line per enabled capability.
func (p *Profile) Instructions() string {
	parts := []string{p.SystemPrompt}
	if p.MayEndCall {
		parts = append(parts, "When the caller's needs are met, you may say goodbye and end the call yourself.")
	}
	if p.MayTransfer {
		parts = append(parts, "If the caller asks for a person, or you cannot help, offer to transfer them to a human operator.")
	}
	if p.DetectVoicemail {
		parts = append(parts, "If an answering machine picks up instead of a person, leave one short message and say goodbye.")
	}
	return strings.Join(parts, " ")
}

// GreetingInstruction returns the model instruction that opens the
// call with the profile's greeting, spoken in the agent's own voice.
// Empty when the profile has no greeting.
func (p *Profile) GreetingInstruction() string {
	if p.Greeting == "" {
		return ""
	}
	return fmt.Sprintf("Greet the caller with exactly these words: %q", p.Greeting)
}

// Validate checks that the profile is usable.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidProfile)
	}
	if p.SystemPrompt == "" {
		return fmt.Errorf("%w: profile %q has no system prompt", ErrInvalidProfile, p.ID)
	}
	return nil
}
