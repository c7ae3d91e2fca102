package tmuxctl

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Attachment is a live PTY bridge to a tmux session: reads return terminal
// output, writes feed keyboard input, Resize adjusts the window. Closing
// detaches the tmux client and releases the PTY.
type Attachment struct {
	master *os.File
	cmd    *exec.Cmd
}

// Attach binds a tmux client for the given session to a freshly allocated
// PTY sized cols x rows.
func (m *Manager) Attach(sessionID string, cols, rows int) (*Attachment, error) {
	if !m.Exists(sessionID) {
		return nil, ErrSessionNotFound
	}

	master, slavePath, err := openPTY()
	if err != nil {
		return nil, fmt.Errorf("allocate PTY: %w", err)
	}

	slave, err := os.OpenFile(slavePath, os.O_RDWR, 0)
	if err != nil {
		master.Close()
		return nil, fmt.Errorf("open PTY slave %s: %w", slavePath, err)
	}

	if cols > 0 && rows > 0 {
		_ = setWindowSize(int(master.Fd()), uint16(cols), uint16(rows))
	}

	args := m.tmuxArgs("attach-session", "-t", SessionPrefix+sessionID)
	cmd := exec.Command("tmux", args...)
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0, // fd 0 in child = slave PTY
	}

	if err := cmd.Start(); err != nil {
		slave.Close()
		master.Close()
		return nil, fmt.Errorf("start tmux attach: %w", err)
	}
	// Close slave in parent, the child holds its own copy via fd 0/1/2.
	slave.Close()

	return &Attachment{master: master, cmd: cmd}, nil
}

// Read returns terminal output bytes. EIO signals that the PTY slave
// closed (tmux detached or exited) and is surfaced as a plain error.
func (a *Attachment) Read(p []byte) (int, error) {
	return a.master.Read(p)
}

// Write feeds input bytes to the session.
func (a *Attachment) Write(p []byte) (int, error) {
	return a.master.Write(p)
}

// Resize adjusts the PTY window size.
func (a *Attachment) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid window size %dx%d", cols, rows)
	}
	return setWindowSize(int(a.master.Fd()), uint16(cols), uint16(rows))
}

// Close detaches the tmux client and reaps its process. The session itself
// keeps running detached.
func (a *Attachment) Close() error {
	_ = a.cmd.Process.Signal(syscall.SIGTERM)
	err := a.master.Close()
	_ = a.cmd.Wait()
	return err
}
