// Package main provides the speech plugin. It reads committed letters and
// words aloud with the platform's text-to-speech command: say on macOS,
// espeak elsewhere.
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

type speechConfig struct {
	Voice string `json:"voice"`
	Rate  int    `json:"rate"`
}

// actionHandler returns the text to speak for a request.
type actionHandler func(req plugin.Request) string

var actionHandlers = map[string]actionHandler{
	"speak-letter": func(req plugin.Request) string { return strings.TrimSpace(req.Appended) },
	"speak-word":   func(req plugin.Request) string { return strings.TrimSpace(req.Word) },
}

func main() {
	resp := handle(os.Stdin, runtime.GOOS, os.Getenv("FINGERSPELL_PLUGIN_DRYRUN") != "")
	json.NewEncoder(os.Stdout).Encode(resp)
}

func handle(in io.Reader, goos string, dryRun bool) plugin.Response {
	var req plugin.Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return plugin.Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		return plugin.Response{Error: fmt.Sprintf("unknown action: %s", req.Action)}
	}

	var cfg speechConfig
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return plugin.Response{Error: fmt.Sprintf("failed to parse config: %v", err)}
		}
	}

	text := handler(req)
	if text == "" {
		return plugin.Response{Success: true}
	}

	args := speakCommand(goos, text, cfg)
	if dryRun {
		data, _ := json.Marshal(map[string][]string{"command": args})
		return plugin.Response{Success: true, Data: data}
	}

	if output, err := exec.Command(args[0], args[1:]...).CombinedOutput(); err != nil {
		return plugin.Response{Error: fmt.Sprintf("action %s failed: %v: %s", req.Action, err, output)}
	}
	return plugin.Response{Success: true}
}

func speakCommand(goos, text string, cfg speechConfig) []string {
	if goos == "darwin" {
		args := []string{"say"}
		if cfg.Voice != "" {
			args = append(args, "-v", cfg.Voice)
		}
		if cfg.Rate > 0 {
			args = append(args, "-r", fmt.Sprint(cfg.Rate))
		}
		return append(args, text)
	}

	args := []string{"espeak"}
	if cfg.Voice != "" {
		args = append(args, "-v", cfg.Voice)
	}
	if cfg.Rate > 0 {
		args = append(args, "-s", fmt.Sprint(cfg.Rate))
	}
	return append(args, text)
}
