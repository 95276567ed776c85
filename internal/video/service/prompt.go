package service

import (
	"fmt"
	"strings"
)

var conceptDescriptions = map[string]string{
	"unboxing":     "An exciting unboxing scene that draws the viewer in",
	"lifestyle":    "The product in everyday use, showing its convenience and benefits",
	"closeup":      "Slow close-up shots highlighting material detail and premium quality",
	"before_after": "A before-and-after comparison with a clearly visible result",
	"demo":         "A simple, quick-to-grasp demonstration of how the product works",
}

var audienceDescriptions = map[string]string{
	"gen_z":         "aimed at Gen Z viewers who like fun and current trends",
	"millennials":   "aimed at millennials who value quality and good value",
	"parents":       "aimed at parents who care about safety and quality for their family",
	"professionals": "aimed at working professionals who want convenience and polish",
	"beauty":        "aimed at beauty enthusiasts who enjoy self-care",
}

// buildPrompt renders the submission prompt sent to every provider. The
// concept and audience keys fall back to the raw value so free-text input
// still produces a usable prompt.
func buildPrompt(name, features, concept, audience, imageURL string) string {
	conceptDesc, ok := conceptDescriptions[concept]
	if !ok {
		conceptDesc = "Present the product with this concept: " + concept
	}
	audienceDesc, ok := audienceDescriptions[audience]
	if !ok {
		audienceDesc = "aimed at this target audience: " + audience
	}

	var b strings.Builder
	b.WriteString("Create a 9:16 product video of about 8 seconds in TikTok/Reels/Shorts style, ")
	b.WriteString("with realistic, attention-grabbing visuals from the first moment.\n")
	b.WriteString("Video details:\n")
	fmt.Fprintf(&b, "- %s\n", conceptDesc)
	fmt.Fprintf(&b, "- Product: %s\n", name)
	fmt.Fprintf(&b, "- Key features: %s\n", features)
	fmt.Fprintf(&b, "- Audience: %s\n", audienceDesc)
	b.WriteString("- Tone: modern, vivid, approachable\n")
	b.WriteString("- Camera movement: smooth and engaging\n")
	if imageURL != "" {
		fmt.Fprintf(&b, "- Reference image: %s\n", imageURL)
	}
	b.WriteString("Output:\n")
	b.WriteString("- High quality 1080x1920 video, 8 seconds, ready for TikTok/Reels/Shorts\n")
	b.WriteString("Rules: no profanity, no inappropriate or adult content, no burned-in subtitles.")
	return b.String()
}
