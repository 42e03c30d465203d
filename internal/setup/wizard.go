// Package setup implements the interactive uptimegram setup wizard.
package setup

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/Fullex26/uptimegram/pkg/models"
)

const DefaultEnvPath = "/etc/uptimegram/env"

const (
	envAPIKey = "UPTIMEGRAM_TELEGRAM_API_KEY"
	envChatID = "UPTIMEGRAM_TELEGRAM_CHAT_ID"
)

// defaultConfigTemplate is written when no config file exists yet.
const defaultConfigTemplate = `# uptimegram configuration
# https://github.com/Fullex26/uptimegram

# ── Telegram ──
telegram:
  api_key: "${UPTIMEGRAM_TELEGRAM_API_KEY}"
  chat_id: "${UPTIMEGRAM_TELEGRAM_CHAT_ID}"
  # Base URL of the uptime dashboard, used for links in messages
  url: ""
  # Any other kind the monitoring engine emits can be added here,
  # with a matching <kind>.tmpl in the templates directory
  event:
    up: false
    down: false
    paused: false
    restarted: false

# Directory with <kind>.tmpl files overriding the built-in messages
templates: ""

store:
  path: "/var/lib/uptimegram/uptimegram.db"

# ── Check events published by the monitoring engine ──
redis:
  enabled: false
  addr: "localhost:6379"
  channel: "uptime:events"

metrics:
  enabled: false
  listen: ":9464"

log:
  level: "info"
  file: ""
`

// eventDefaults are the answers used when the user just presses Enter
var eventDefaults = map[models.EventKind]bool{
	models.EventUp:        true,
	models.EventDown:      true,
	models.EventPaused:    false,
	models.EventRestarted: false,
}

// Run is the entry point for the interactive setup wizard.
func Run(configPath, envPath string) error {
	fmt.Println()
	fmt.Println("🔔 uptimegram Setup")
	fmt.Println("───────────────────")
	fmt.Println()

	if err := ensureConfig(configPath); err != nil {
		return err
	}

	r := bufio.NewReader(os.Stdin)

	// ── Credentials ──────────────────────────────────────────────
	vars, err := collectCredentials(r)
	if err != nil {
		return err
	}
	if err := writeEnvFile(envPath, vars); err != nil {
		return fmt.Errorf("writing env file: %w", err)
	}
	// Set in current process so the test subprocess inherits them
	// (config.Load uses os.ExpandEnv which reads the process environment).
	for k, v := range vars {
		_ = os.Setenv(k, v)
	}
	fmt.Printf("  ✅ Credentials saved to %s\n\n", envPath)

	// ── Config ───────────────────────────────────────────────────
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	updated := collectSettings(r, string(configData))
	if err := os.WriteFile(configPath, []byte(updated), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Printf("  ✅ Config updated: %s\n\n", configPath)

	// ── Test notification ─────────────────────────────────────────
	fmt.Print("  Send a test notification? [Y/n]: ")
	if readBool(r, true) {
		fmt.Print("  Sending... ")
		if err := runTest(configPath); err != nil {
			fmt.Printf("\n  ⚠️  Test failed: %v\n", err)
			fmt.Println("  Check your credentials, then retry: uptimegram test")
		} else {
			fmt.Println("✅")
		}
	}
	fmt.Println()

	// ── Start service ─────────────────────────────────────────────
	fmt.Print("  Enable and start uptimegram service? [Y/n]: ")
	if readBool(r, true) {
		if err := startService(); err != nil {
			fmt.Printf("  ⚠️  %v\n", err)
			fmt.Println("  Start manually: sudo systemctl enable --now uptimegram")
		} else {
			fmt.Println("  ✅ Service enabled and started!")
		}
	}

	fmt.Println()
	fmt.Println("✅ Setup complete!")
	fmt.Println()
	return nil
}

// ensureConfig creates the config file from the default template if absent.
func ensureConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0600); err != nil {
		return fmt.Errorf("creating default config: %w", err)
	}
	fmt.Printf("  Created default config: %s\n\n", path)
	return nil
}

// collectCredentials prompts for the bot token and target chat.
func collectCredentials(r *bufio.Reader) (map[string]string, error) {
	fmt.Println("  Telegram")
	fmt.Println("  ──────────────────────────────────────────────────────────")
	fmt.Println("  1. Open Telegram and message @BotFather → /newbot")
	fmt.Println("  2. Get your Chat ID by messaging @userinfobot,")
	fmt.Println("     or use @yourchannel after adding the bot as an admin")
	fmt.Println()

	token, err := readMasked(r, "  Bot API key: ")
	if err != nil {
		return nil, err
	}
	fmt.Print("  Chat ID:     ")
	chatID := readLine(r)
	fmt.Println()

	return map[string]string{
		envAPIKey: strings.TrimSpace(token),
		envChatID: strings.TrimSpace(chatID),
	}, nil
}

// collectSettings asks for the dashboard URL and which events to notify.
func collectSettings(r *bufio.Reader, cfg string) string {
	fmt.Print("  Dashboard URL (optional, used for links): ")
	if v := strings.TrimSpace(readLine(r)); v != "" {
		cfg = strings.Replace(cfg, `  url: ""`, fmt.Sprintf(`  url: "%s"`, v), 1)
	}
	fmt.Println()

	fmt.Println("  Which events should be sent to Telegram?")
	enabled := make(map[models.EventKind]bool, len(models.EventKinds))
	for _, kind := range models.EventKinds {
		def := eventDefaults[kind]
		hint := "[y/N]"
		if def {
			hint = "[Y/n]"
		}
		fmt.Printf("    %s %-10s %s: ", kind.Emoji(), kind, hint)
		enabled[kind] = readBool(r, def)
	}
	return applyEvents(cfg, enabled)
}

// applyEvents flips the per-kind flags in the telegram event block.
func applyEvents(cfg string, enabled map[models.EventKind]bool) string {
	for kind, on := range enabled {
		if !on {
			continue
		}
		cfg = setInBlock(cfg, "event",
			fmt.Sprintf("    %s: false", kind),
			fmt.Sprintf("    %s: true", kind))
	}
	return cfg
}

// setInBlock replaces old with replacement within the YAML block that begins
// with "  {name}:\n". The block ends at the first non-empty line whose
// indentation is less than 4 spaces (i.e. a sibling or parent key).
func setInBlock(cfg, name, old, replacement string) string {
	marker := "  " + name + ":\n"
	idx := strings.Index(cfg, marker)
	if idx == -1 {
		return cfg
	}

	after := cfg[idx+len(marker):]

	// Walk lines to find the end of this block.
	end := len(after)
	pos := 0
	for pos < len(after) {
		nl := strings.IndexByte(after[pos:], '\n')
		if nl == -1 {
			end = len(after)
			break
		}
		line := after[pos : pos+nl]
		if len(line) > 0 && !strings.HasPrefix(line, "    ") {
			end = pos
			break
		}
		pos += nl + 1
	}

	block := strings.Replace(after[:end], old, replacement, 1)
	return cfg[:idx+len(marker)] + block + after[end:]
}

// writeEnvFile writes KEY=value pairs to path (one per line, mode 0600).
func writeEnvFile(path string, vars map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	var sb strings.Builder
	for k, v := range vars {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(v)
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0600)
}

// runTest invokes the current binary's "test" subcommand.
// The child process inherits the parent's environment, so any os.Setenv calls
// made before this are visible to config.Load → os.ExpandEnv.
func runTest(configPath string) error {
	self, err := os.Executable()
	if err != nil {
		self = "uptimegram"
	}
	cmd := exec.Command(self, "--config", configPath, "test")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// startService enables and starts the uptimegram systemd service.
func startService() error {
	out, err := exec.Command("systemctl", "enable", "--now", "uptimegram").CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// readLine reads one line from r, stripping the trailing newline.
func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

// readMasked reads a secret without echoing characters when stdin is a TTY.
// Falls back to plain line reading for non-interactive contexts (pipes, CI).
func readMasked(r *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(b), nil
	}
	return readLine(r), nil
}

// readBool parses a y/n response; returns defaultVal on empty input.
func readBool(r *bufio.Reader, defaultVal bool) bool {
	line := strings.ToLower(strings.TrimSpace(readLine(r)))
	if line == "" {
		return defaultVal
	}
	return line == "y" || line == "yes"
}
