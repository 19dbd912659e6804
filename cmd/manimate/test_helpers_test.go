package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"manimate/internal/config"
	"manimate/internal/testsupport"
)

// stubEngine echoes its arguments into the job log and fails with status 2
// for documents containing FAIL.
const stubEngine = `echo "args: $*"
echo "script: $MANIM_SCRIPT_FILE"
if grep -q FAIL "$MANIM_SCRIPT_FILE"; then
  echo "boom" >&2
  exit 2
fi
exit 0`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithoutNarration(), testsupport.WithHistory(true))
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("MANIMATE_VOICE", "")
	t.Setenv("MANIMATE_TTS_URL", "")

	cfg.Render.Binary = testsupport.WriteExecutable(t, filepath.Join(base, "bin"), "manim", stubEngine)

	configPath := filepath.Join(base, "manimate.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
work_dir = %q
log_dir = %q
cache_dir = %q
output_dir = %q
state_dir = %q
staging_file = %q

[render]
binary = %q
grace_seconds = 1
prepare_narration = false

[logging]
level = "error"

[history]
enabled = true
`,
		cfg.Paths.WorkDir,
		cfg.Paths.LogDir,
		cfg.Paths.CacheDir,
		cfg.Paths.OutputDir,
		cfg.Paths.StateDir,
		cfg.Paths.StagingFile,
		cfg.Render.Binary,
	)
	if topic := cfg.Notifications.NtfyTopic; topic != "" {
		content += fmt.Sprintf("\n[notifications]\nntfy_topic = %q\n", topic)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeScript(t *testing.T, env *cliTestEnv, name, intro string) string {
	t.Helper()
	doc := testsupport.SampleDocument()
	doc.Intro = intro
	return testsupport.WriteScript(t, env.cfg.Paths.WorkDir, name, doc)
}

func readLedger(t *testing.T, env *cliTestEnv) []string {
	t.Helper()
	data, err := os.ReadFile(env.cfg.LedgerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read ledger: %v", err)
	}
	return strings.Fields(string(data))
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n%s", needle, haystack)
	}
}
