package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JongoDB/arc4de/internal/termclient"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func Connect() *cobra.Command {
	var connectAddr string
	var connectToken string
	var connectSession string
	var connectCmd = &cobra.Command{
		Use:   "connect",
		Short: "Attach the local terminal to an ARC4DE server session",
		Long:  `Attach the local terminal to an ARC4DE server session. Press Ctrl-] to detach.`,
		Run: func(cmd *cobra.Command, args []string) {
			connect(connectAddr, connectToken, connectSession)
		},
	}
	connectCmd.Flags().StringVarP(&connectAddr, "addr", "a", "http://localhost:8000", "server address")
	connectCmd.Flags().StringVarP(&connectToken, "token", "t", "", "access token, see gentoken")
	connectCmd.Flags().StringVarP(&connectSession, "session", "s", "", "session id to attach to, a new session when empty")
	return connectCmd
}

// detachKey is Ctrl-].
const detachKey = 0x1d

func connect(addr, token, sessionID string) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		fmt.Println("stdin is not a terminal")
		os.Exit(1)
	}
	if token == "" {
		fmt.Println("access token required, generate one with gentoken")
		os.Exit(1)
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Printf("error entering raw mode: %v\n", err)
		os.Exit(1)
	}
	restore := func() { _ = term.Restore(fd, oldState) }
	defer restore()

	done := make(chan struct{})
	transport := termclient.New(termclient.Config{}, termclient.Events{
		OnOutput: func(data string) {
			_, _ = os.Stdout.WriteString(data)
		},
		OnStateChange: func(state termclient.State) {
			if state == termclient.StateConnected {
				fmt.Printf("\r\n[connected, Ctrl-] to detach]\r\n")
			}
		},
		OnError: func(err error) {
			fmt.Fprintf(os.Stderr, "\r\n[error: %v]\r\n", err)
		},
	})
	transport.Connect(token, sessionID, addr)
	defer transport.Disconnect()

	sendSize := func() {
		if cols, rows, err := term.GetSize(fd); err == nil {
			transport.SendResize(cols, rows)
		}
	}
	sendSize()

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			sendSize()
		}
	}()

	// Stdin pump, Ctrl-] detaches.
	go func() {
		defer close(done)
		buf := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			for i := 0; i < n; i++ {
				if buf[i] == detachKey {
					if i > 0 {
						transport.SendInput(string(buf[:i]))
					}
					return
				}
			}
			transport.SendInput(string(buf[:n]))
		}
	}()

	<-done
	signal.Stop(winch)
	restore()
	fmt.Println("\ndetached")
}
