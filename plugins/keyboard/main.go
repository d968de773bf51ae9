// Package main provides the keyboard plugin. It types committed letters into
// the focused application and can send bound keystrokes.
//
// On macOS it drives System Events through osascript; elsewhere it uses
// xdotool. Setting FINGERSPELL_PLUGIN_DRYRUN prints the command instead of
// running it.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/ayusman/fingerspell/internal/plugin"
)

// keyParams configures the keystroke action. It is read from the binding
// config, then overridden by request params.
type keyParams struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// typeParams configures the type action.
type typeParams struct {
	Text      string `json:"text"`
	Uppercase *bool  `json:"uppercase"`
}

var appleModifiers = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

var xdoModifiers = map[string]string{
	"command": "super",
	"cmd":     "super",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"shift":   "shift",
}

func main() {
	resp := handle(os.Stdin, runtime.GOOS, os.Getenv("FINGERSPELL_PLUGIN_DRYRUN") != "")
	json.NewEncoder(os.Stdout).Encode(resp)
}

func handle(in io.Reader, goos string, dryRun bool) plugin.Response {
	var req plugin.Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return failure(fmt.Sprintf("failed to decode request: %v", err))
	}

	var args []string
	var err error
	switch req.Action {
	case "type":
		args, err = typeCommand(goos, req)
	case "keystroke":
		args, err = keystrokeCommand(goos, req)
	default:
		return failure(fmt.Sprintf("unknown action: %s", req.Action))
	}
	if err != nil {
		return failure(fmt.Sprintf("action %s failed: %v", req.Action, err))
	}
	if args == nil {
		return plugin.Response{Success: true}
	}

	if dryRun {
		data, _ := json.Marshal(map[string][]string{"command": args})
		return plugin.Response{Success: true, Data: data}
	}
	if err := run(args); err != nil {
		return failure(fmt.Sprintf("action %s failed: %v", req.Action, err))
	}
	return plugin.Response{Success: true}
}

// typeCommand types the appended text, or the configured text when set.
// Nothing to type yields a nil command.
func typeCommand(goos string, req plugin.Request) ([]string, error) {
	var p typeParams
	if err := mergeParams(&p, req.Config, req.Params); err != nil {
		return nil, err
	}
	text := req.Appended
	if p.Text != "" {
		text = p.Text
	}
	if p.Uppercase != nil && !*p.Uppercase {
		text = strings.ToLower(text)
	}
	if text == "" {
		return nil, nil
	}

	if goos == "darwin" {
		return []string{"osascript", "-e",
			fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, escapeAppleScript(text))}, nil
	}
	return []string{"xdotool", "type", "--", text}, nil
}

func keystrokeCommand(goos string, req plugin.Request) ([]string, error) {
	var p keyParams
	if err := mergeParams(&p, req.Config, req.Params); err != nil {
		return nil, err
	}
	if p.Key == "" {
		return nil, fmt.Errorf("key is required")
	}

	if goos == "darwin" {
		return []string{"osascript", "-e", buildKeystrokeScript(p.Key, p.Modifiers)}, nil
	}

	combo := make([]string, 0, len(p.Modifiers)+1)
	for _, mod := range p.Modifiers {
		if m, ok := xdoModifiers[strings.ToLower(mod)]; ok {
			combo = append(combo, m)
		}
	}
	combo = append(combo, p.Key)
	return []string{"xdotool", "key", strings.Join(combo, "+")}, nil
}

// buildKeystrokeScript generates an AppleScript for the given key and modifiers.
func buildKeystrokeScript(key string, modifiers []string) string {
	var mods []string
	for _, mod := range modifiers {
		if m, ok := appleModifiers[strings.ToLower(mod)]; ok {
			mods = append(mods, m)
		}
	}

	script := fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, escapeAppleScript(key))
	if len(mods) > 0 {
		script += fmt.Sprintf(" using {%s}", strings.Join(mods, ", "))
	}
	return script
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// mergeParams decodes each non-empty JSON document into v in order.
func mergeParams(v any, docs ...json.RawMessage) error {
	for _, doc := range docs {
		if len(doc) == 0 {
			continue
		}
		if err := json.Unmarshal(doc, v); err != nil {
			return fmt.Errorf("failed to parse params: %w", err)
		}
	}
	return nil
}

func run(args []string) error {
	output, err := exec.Command(args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

func failure(msg string) plugin.Response {
	return plugin.Response{Success: false, Error: msg}
}
