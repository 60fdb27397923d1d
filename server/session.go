package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/moshix/searchserver/format"
	"github.com/moshix/searchserver/stats"
)

// Recorder receives session level measurements.
type Recorder interface {
	SessionOpened()
	SessionClosed()
	Message()
	Command(name string)
}

type nopRecorder struct{}

func (nopRecorder) SessionOpened() {}
func (nopRecorder) SessionClosed() {}
func (nopRecorder) Message()       {}
func (nopRecorder) Command(string) {}

// ActivityLog hands out the per-connection activity logger.
type ActivityLog interface {
	Peer(peer, sessionID string) *zap.Logger
}

// SessionConfig holds per-connection protocol settings.
type SessionConfig struct {
	// Delay paces each line of a response shorter than DelayLines lines.
	Delay      time.Duration
	DelayLines int
	ReadBuffer int
	Welcome    bool
}

// Session owns one client connection for its whole life.
type Session struct {
	id        string
	peer      string
	transport string
	rw        io.ReadWriteCloser
	cfg       SessionConfig

	disp     *Dispatcher
	stats    *stats.Stats
	recorder Recorder
	fmt      *format.Formatter
	act      *zap.Logger
	log      *zap.Logger

	buf     LineBuffer
	limiter *rate.Limiter
	now     func() time.Time
}

// Serve runs the session until the client logs off or disconnects, or the
// connection fails. The connection is always closed on return.
func (s *Session) Serve(ctx context.Context) (err error) {
	s.stats.ClientConnected()
	s.recorder.SessionOpened()
	s.act.Info(fmt.Sprintf("Accepted connection from %s", s.peer))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session panic: %v", r)
			s.log.Error("session crashed", zap.String("session", s.id), zap.Error(err))
		}
		_ = s.rw.Close()
		s.stats.ClientDisconnected()
		s.recorder.SessionClosed()
		s.act.Info(fmt.Sprintf("Connection with %s closed.", s.peer))
	}()

	if s.cfg.Welcome {
		if err := s.writeRaw("\n" + s.fmt.Welcome(s.transport) + format.LineSep + s.fmt.Help() + format.LineSep); err != nil {
			return s.interrupted(err)
		}
	}

	chunk := make([]byte, s.cfg.ReadBuffer)
	for {
		n, rerr := s.rw.Read(chunk)
		if n > 0 {
			if ferr := s.buf.Feed(chunk[:n]); ferr != nil {
				s.log.Debug("dropped undecodable chunk", zap.String("session", s.id),
					zap.Int("bytes", n), zap.Int("pending", s.buf.Pending()))
			}
			for {
				line, ok := s.buf.Next()
				if !ok {
					break
				}
				done, werr := s.handleLine(ctx, line)
				if werr != nil {
					return s.interrupted(werr)
				}
				if done {
					return nil
				}
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			return s.interrupted(rerr)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handleLine processes one received line and writes its response. done is
// true when the session should end.
func (s *Session) handleLine(ctx context.Context, line string) (done bool, err error) {
	s.act.Info("Received command: " + line)
	start := s.now()

	s.stats.Message()
	s.recorder.Message()

	reply := Reply{Text: s.fmt.Echo(line)}
	if strings.HasPrefix(line, "/") {
		s.stats.Command()
		reply = s.disp.Dispatch(ctx, line, s.act)
	}

	text := reply.Text + "\n" + s.fmt.ResponseTime(s.now().Sub(start))
	if err := s.send(ctx, "\n\n"+text); err != nil {
		return false, err
	}
	return reply.Close, nil
}

// send writes response split on \r\n, terminating each line with \r\n.
// Responses shorter than DelayLines lines are paced line by line.
func (s *Session) send(ctx context.Context, response string) error {
	lines := strings.Split(response, format.LineSep)
	if s.limiter == nil || len(lines) >= s.cfg.DelayLines {
		return s.writeRaw(strings.Join(lines, format.LineSep) + format.LineSep)
	}

	for i, line := range lines {
		if err := s.limiter.Wait(ctx); err != nil {
			// Shutting down: flush the rest without pacing.
			return s.writeRaw(strings.Join(lines[i:], format.LineSep) + format.LineSep)
		}
		if err := s.writeRaw(line + format.LineSep); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) writeRaw(text string) error {
	_, err := io.WriteString(s.rw, text)
	return err
}

// interrupted logs a transport failure. Closed connections and deadline
// expiry during shutdown are expected and end the session quietly.
func (s *Session) interrupted(err error) error {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) {
		return nil
	}
	s.act.Info(fmt.Sprintf("Connection with %s was interrupted.", s.peer))
	return err
}

// SessionFactory builds sessions that share the dispatcher, counters and
// loggers.
type SessionFactory struct {
	Dispatcher *Dispatcher
	Stats      *stats.Stats
	Recorder   Recorder
	Formatter  *format.Formatter
	Activity   ActivityLog
	Logger     *zap.Logger
	Config     SessionConfig
}

// NewSession wraps rw in a Session. transport names the banner shown to the
// client.
func (f *SessionFactory) NewSession(rw io.ReadWriteCloser, peer, transport string) *Session {
	id := uuid.NewString()
	rec := f.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	log := f.Logger
	if log == nil {
		log = zap.NewNop()
	}
	act := log
	if f.Activity != nil {
		act = f.Activity.Peer(peer, id)
	}
	readBuf := f.Config.ReadBuffer
	if readBuf <= 0 {
		readBuf = 1024
	}
	cfg := f.Config
	cfg.ReadBuffer = readBuf

	s := &Session{
		id:        id,
		peer:      peer,
		transport: transport,
		rw:        rw,
		cfg:       cfg,
		disp:      f.Dispatcher,
		stats:     f.Stats,
		recorder:  rec,
		fmt:       f.Formatter,
		act:       act,
		log:       log.With(zap.String("peer", peer)),
		now:       time.Now,
	}
	if cfg.Delay > 0 && cfg.DelayLines > 0 {
		s.limiter = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}
	return s
}

// ServeConn implements Handler for plain TCP connections.
func (f *SessionFactory) ServeConn(ctx context.Context, conn net.Conn) {
	_ = f.NewSession(conn, conn.RemoteAddr().String(), "Telnet").Serve(ctx)
}
