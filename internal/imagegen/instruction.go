// Package imagegen builds the text instruction sent next to the visitor photo.
package imagegen

import (
	"fmt"
	"strings"

	"kiosk/internal/domain"
)

// BuildInstruction renders the portrait instruction for the selected options.
// The same options always produce the same text.
func BuildInstruction(opts domain.Options) string {
	parts := []string{
		"Create a high-quality portrait of the person in the provided photo.",
	}
	if outfit := strings.TrimSpace(string(opts.Outfit)); outfit != "" {
		parts = append(parts, fmt.Sprintf("Dress the person in: %s.", outfit))
	}
	if setting := strings.TrimSpace(string(opts.Setting)); setting != "" {
		parts = append(parts, fmt.Sprintf("Place the person in this setting: %s.", setting))
	}
	if style := strings.TrimSpace(string(opts.Style)); style != "" {
		parts = append(parts, fmt.Sprintf("Render the whole image in a %s style.", style))
	}
	parts = append(parts,
		"Framing: upper-body portrait from the waist up, person looking into the camera. DO NOT show the full body.",
		"Preserve the facial features, skin tone and identity of the person exactly. The face must stay recognizable.",
	)
	if aspect := strings.TrimSpace(string(opts.AspectRatio)); aspect != "" {
		parts = append(parts, "Compose the image for an aspect ratio of "+aspect+".")
	}
	return strings.Join(parts, " ")
}
