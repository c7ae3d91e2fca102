package plugins

import "os/exec"

// lookPath finds a binary on PATH, split out for tests.
var lookPath = exec.LookPath

type shellPlugin struct{}

// Shell is the built-in default profile: a bare terminal, no CLI
// wrapping.
func Shell() Plugin { return shellPlugin{} }

func (shellPlugin) Name() string        { return "shell" }
func (shellPlugin) DisplayName() string { return "Shell" }
func (shellPlugin) Command() string     { return "" }

func (shellPlugin) QuickActions() []QuickAction {
	return []QuickAction{
		{Label: "Clear", Command: "clear", Icon: "trash"},
		{Label: "Exit", Command: "exit", Icon: "x"},
	}
}

func (shellPlugin) Health() Health { return Health{Available: true} }

type claudeCodePlugin struct{}

// ClaudeCode wraps the claude CLI for AI-assisted coding sessions.
func ClaudeCode() Plugin { return claudeCodePlugin{} }

func (claudeCodePlugin) Name() string        { return "claude-code" }
func (claudeCodePlugin) DisplayName() string { return "Claude Code" }
func (claudeCodePlugin) Command() string     { return "claude" }

func (claudeCodePlugin) QuickActions() []QuickAction {
	return []QuickAction{
		{Label: "New conversation", Command: "claude", Icon: "chat"},
		{Label: "Continue last", Command: "claude --continue", Icon: "arrow-right"},
		{Label: "Resume session", Command: "claude --resume", Icon: "rotate"},
	}
}

func (claudeCodePlugin) Health() Health {
	if _, err := lookPath("claude"); err != nil {
		return Health{Available: false, Message: "claude CLI not found in PATH"}
	}
	return Health{Available: true}
}
