package config

const (
	defaultWorkDir              = "scripts"
	defaultLogDir               = "logs"
	defaultCacheDir             = "media/sounds"
	defaultOutputDir            = "media/videos"
	defaultStateDir             = "~/.local/share/manimate"
	defaultStagingFile          = "test.json"
	defaultScriptExtension      = ".json"
	defaultLedgerFile           = "done.txt"
	defaultRenderBinary         = "manim"
	defaultRenderModule         = "main.py"
	defaultRenderScene          = "Video"
	defaultRenderQuality        = "low"
	defaultRenderGraceSeconds   = 10
	defaultVoice                = "en-GB-SoniaNeural"
	defaultVoiceBackend         = "edge-tts"
	defaultEdgeTTSBinary        = "edge-tts"
	defaultVoiceTimeoutSeconds  = 60
	defaultVoiceRequestsPerSec  = 2.0
	defaultPaddingSeconds       = 3.0
	defaultAnswerPaddingSeconds = 1.0
	defaultMinHoldSeconds       = 2.0
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
	defaultCombinedLog          = "combined_logs.txt"
	defaultNtfyRequestTimeout   = 10
)

// KnownVoices lists the synthesis voices offered by `manimate voice list`.
var KnownVoices = []string{
	"en-GB-SoniaNeural",
	"en-US-AriaNeural",
	"en-AU-NatashaNeural",
}

// Default returns a Config populated with repository defaults. Relative paths
// resolve against the current working directory at load time.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:     defaultWorkDir,
			LogDir:      defaultLogDir,
			CacheDir:    defaultCacheDir,
			OutputDir:   defaultOutputDir,
			StateDir:    defaultStateDir,
			StagingFile: defaultStagingFile,
		},
		Scripts: Scripts{
			Extension:  defaultScriptExtension,
			LedgerFile: defaultLedgerFile,
		},
		Render: Render{
			Binary:           defaultRenderBinary,
			Module:           defaultRenderModule,
			Scene:            defaultRenderScene,
			Quality:          defaultRenderQuality,
			GraceSeconds:     defaultRenderGraceSeconds,
			PrepareNarration: true,
		},
		Voice: Voice{
			Voice:             defaultVoice,
			Backend:           defaultVoiceBackend,
			Binary:            defaultEdgeTTSBinary,
			TimeoutSeconds:    defaultVoiceTimeoutSeconds,
			RequestsPerSecond: defaultVoiceRequestsPerSec,
		},
		Timing: Timing{
			PaddingSeconds:       defaultPaddingSeconds,
			AnswerPaddingSeconds: defaultAnswerPaddingSeconds,
			MinHoldSeconds:       defaultMinHoldSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
			CombinedLog:   defaultCombinedLog,
		},
		History: History{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
	}
}
