package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

const sshHandshakeTimeout = 30 * time.Second

// SSHHandler runs the command protocol inside SSH session channels. Any
// username and password are accepted.
type SSHHandler struct {
	sessions *SessionFactory
	config   *ssh.ServerConfig
	log      *zap.Logger
}

// NewSSHHandler creates a handler that authenticates with signer as its host
// key.
func NewSSHHandler(sessions *SessionFactory, signer ssh.Signer, log *zap.Logger) *SSHHandler {
	if log == nil {
		log = zap.NewNop()
	}
	cfg := &ssh.ServerConfig{
		PasswordCallback: func(ssh.ConnMetadata, []byte) (*ssh.Permissions, error) {
			return nil, nil
		},
		KeyboardInteractiveCallback: func(ssh.ConnMetadata, ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			return nil, nil
		},
	}
	cfg.AddHostKey(signer)
	return &SSHHandler{sessions: sessions, config: cfg, log: log}
}

// LoadHostKey reads a PEM private key from path. An empty path yields a fresh
// ed25519 key that lives only as long as the process.
func LoadHostKey(path string) (ssh.Signer, error) {
	if path == "" {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate host key: %w", err)
		}
		return ssh.NewSignerFromKey(priv)
	}

	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read host key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("parse host key %s: %w", path, err)
	}
	return signer, nil
}

// ServeConn implements Handler.
func (h *SSHHandler) ServeConn(ctx context.Context, conn net.Conn) {
	peer := conn.RemoteAddr().String()
	log := h.log.With(zap.String("peer", peer))

	_ = conn.SetDeadline(time.Now().Add(sshHandshakeTimeout))
	sconn, chans, reqs, err := ssh.NewServerConn(conn, h.config)
	if err != nil {
		log.Debug("ssh handshake failed", zap.Error(err))
		_ = conn.Close()
		return
	}
	_ = conn.SetDeadline(time.Time{})
	defer sconn.Close()

	log.Info("ssh connection established", zap.String("user", sconn.User()))
	go ssh.DiscardRequests(reqs)

	var wg sync.WaitGroup
	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			log.Warn("could not accept channel", zap.Error(err))
			continue
		}

		t := term.NewTerminal(ch, "")
		go handleChannelRequests(requests, t)

		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.sessions.NewSession(&terminalConn{term: t, ch: ch}, peer, "SSH").Serve(ctx)
		}()
	}
	wg.Wait()
}

type ptyRequest struct {
	Term    string
	Columns uint32
	Rows    uint32
	Width   uint32
	Height  uint32
	Modes   string
}

type windowChange struct {
	Columns uint32
	Rows    uint32
	Width   uint32
	Height  uint32
}

// handleChannelRequests accepts a terminal and a shell and tracks window
// size. Everything else is refused.
func handleChannelRequests(in <-chan *ssh.Request, t *term.Terminal) {
	for req := range in {
		ok := false
		switch req.Type {
		case "pty-req":
			var p ptyRequest
			if ssh.Unmarshal(req.Payload, &p) == nil {
				_ = t.SetSize(int(p.Columns), int(p.Rows))
			}
			ok = true
		case "window-change":
			var w windowChange
			if ssh.Unmarshal(req.Payload, &w) == nil {
				_ = t.SetSize(int(w.Columns), int(w.Rows))
			}
			ok = true
		case "shell":
			ok = true
		}
		if req.WantReply {
			_ = req.Reply(ok, nil)
		}
	}
}

// terminalConn adapts a line-disciplined terminal to the byte stream a
// Session reads: every edited line is delivered with a trailing newline.
type terminalConn struct {
	term    *term.Terminal
	ch      ssh.Channel
	pending []byte
}

func (c *terminalConn) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		line, err := c.term.ReadLine()
		if err != nil {
			return 0, err
		}
		c.pending = []byte(line + "\n")
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write sends p through the terminal, which turns every "\n" into "\r\n".
// Session output already ends lines with "\r\n", so those are reduced to
// "\n" first.
func (c *terminalConn) Write(p []byte) (int, error) {
	if _, err := c.term.Write(bytes.ReplaceAll(p, []byte("\r\n"), []byte("\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *terminalConn) Close() error {
	return c.ch.Close()
}
