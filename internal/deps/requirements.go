package deps

import "manimate/internal/config"

// Requirements lists the external tools the configuration needs. edge-tts is
// optional when narration goes through the HTTP backend or is disabled.
func Requirements(cfg *config.Config) []Requirement {
	edgeOptional := cfg.Voice.Backend != "edge-tts" || !cfg.Render.PrepareNarration
	return []Requirement{
		{
			Name:        "Render engine",
			Command:     cfg.Render.Binary,
			Description: "Renders staged documents into video",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Measures narration clip durations",
			Optional:    !cfg.Render.PrepareNarration,
		},
		{
			Name:        "edge-tts",
			Command:     cfg.Voice.Binary,
			Description: "Synthesizes narration",
			Optional:    edgeOptional,
		},
	}
}

// Missing returns the required (non-optional) tools that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
