package render

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/lptsplit/lptsplit/internal/logger"
)

// DefaultTopOfForm is passed to the renderer as "-tof 3".
const DefaultTopOfForm = 3

// DefaultArgs are the renderer options used when none are configured.
var DefaultArgs = Args(DefaultTopOfForm, nil)

// Args builds renderer options: the top-of-form line followed by extra
// options passed through unchanged. A non-positive tof omits the option.
// The result is never nil.
func Args(tof int, extra []string) []string {
	args := make([]string, 0, 2+len(extra))
	if tof > 0 {
		args = append(args, "-tof", strconv.Itoa(tof))
	}
	return append(args, extra...)
}

// maxCaptured bounds how much renderer stdout/stderr is kept in memory.
const maxCaptured = 64 * 1024

// ExecLauncher spawns the external renderer as
//
//	<Path> <Args...> -- <output>
//
// with stdin as the render sink. Stdout and stderr are captured and, when
// Log.RendererDir is set, also appended to rotating log files.
type ExecLauncher struct {
	Path string
	Args []string
	Env  []string
	Log  logger.Config
	// Logger receives launch warnings; slog.Default() when nil.
	Logger *slog.Logger
}

// Command builds the renderer command line for outputPath.
func (l ExecLauncher) Command(outputPath string) *exec.Cmd {
	args := l.Args
	if args == nil {
		args = DefaultArgs
	}
	argv := make([]string, 0, len(args)+2)
	argv = append(argv, args...)
	argv = append(argv, "--", outputPath)
	// #nosec G204
	cmd := exec.Command(l.Path, argv...)
	if len(l.Env) > 0 {
		cmd.Env = l.Env
	}
	configureSysProcAttr(cmd)
	return cmd
}

func (l ExecLauncher) Launch(outputPath string) (Sink, error) {
	cmd := l.Command(outputPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrRendererUnavailable, err)
	}
	s := &execSink{cmd: cmd, stdin: stdin}

	name := strings.TrimSuffix(filepath.Base(l.Path), filepath.Ext(l.Path))
	outW, errW, err := l.Log.RendererWriters(name)
	if err != nil {
		l.logger().Warn("renderer logs disabled", "error", err)
	}
	s.outLog, s.errLog = outW, errW
	cmd.Stdout = teeTo(&s.stdout, outW)
	cmd.Stderr = teeTo(&s.stderr, errW)

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		s.closeLogs()
		return nil, fmt.Errorf("%w: start %s: %v", ErrRendererUnavailable, l.Path, err)
	}
	return s, nil
}

func (l ExecLauncher) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

type execSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout capped
	stderr capped
	outLog io.WriteCloser
	errLog io.WriteCloser
	once   sync.Once
	out    Output
	err    error
}

func (s *execSink) Write(p []byte) (int, error) { return s.stdin.Write(p) }

func (s *execSink) Pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

func (s *execSink) Close() (Output, error) {
	s.once.Do(func() {
		_ = s.stdin.Close()
		waitErr := s.cmd.Wait()
		s.closeLogs()
		s.out = Output{
			Stdout:  s.stdout.Bytes(),
			Stderr:  s.stderr.Bytes(),
			ExitErr: waitErr,
		}
		if s.cmd.Process != nil {
			s.out.PID = s.cmd.Process.Pid
		}
		s.err = waitErr
	})
	return s.out, s.err
}

func (s *execSink) closeLogs() {
	if s.outLog != nil {
		_ = s.outLog.Close()
	}
	if s.errLog != nil {
		_ = s.errLog.Close()
	}
}

func teeTo(buf *capped, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

// capped keeps the first maxCaptured bytes written to it and drops the rest.
type capped struct {
	mu  sync.Mutex
	buf []byte
}

func (c *capped) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if room := maxCaptured - len(c.buf); room > 0 {
		if len(p) > room {
			c.buf = append(c.buf, p[:room]...)
		} else {
			c.buf = append(c.buf, p...)
		}
	}
	return len(p), nil
}

func (c *capped) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf...)
}
