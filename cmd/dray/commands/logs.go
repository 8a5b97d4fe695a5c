package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marmos91/dray/pkg/config"
)

var (
	logsFollow bool
	logsLines  int
	logsSince  string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Tail server logs",
	Long: `Display and optionally follow the dray server logs.

This command reads the file named by logging.output in the configuration.
It fails when the server logs to stdout or stderr.

Examples:
  # Show last 100 lines (default)
  dray logs

  # Show last 50 lines
  dray logs -n 50

  # Follow logs in real-time
  dray logs -f

  # Show logs since a specific time
  dray logs --since "2026-01-15T10:00:00Z"`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since timestamp (RFC3339 format)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logFile := cfg.Logging.Output
	if logFile == "stdout" || logFile == "stderr" {
		return fmt.Errorf("server is configured to log to %s, not a file\nSet 'logging.output' to a file path to use this command", logFile)
	}
	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s\nThe server may not have started yet or is logging elsewhere", logFile)
	}

	var since time.Time
	if logsSince != "" {
		since, err = time.Parse(time.RFC3339, logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since format (use RFC3339): %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if !logsFollow {
		_, err := showLogs(out, logFile, logsLines, since)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Following %s (Ctrl+C to stop)...\n", logFile)
	return followLogs(ctx, out, logFile, logsLines, since)
}

// showLogs writes the last n lines of logFile written at or after since and
// returns the offset it stopped reading at.
func showLogs(w io.Writer, logFile string, n int, since time.Time) (int64, error) {
	file, err := os.Open(logFile)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if n <= 0 {
		return file.Seek(0, io.SeekEnd)
	}

	tail := make([]string, 0, n)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !since.IsZero() {
			if t := extractTimestamp(line); !t.IsZero() && t.Before(since) {
				continue
			}
		}
		if len(tail) == n {
			tail = append(tail[:0], tail[1:]...)
		}
		tail = append(tail, line)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error reading log file: %w", err)
	}

	for _, line := range tail {
		_, _ = fmt.Fprintln(w, line)
	}
	// The scanner stops at end of file.
	return file.Seek(0, io.SeekCurrent)
}

// followLogs prints the tail of logFile, then every complete line appended
// to it until ctx is cancelled. A file that shrinks is read again from the
// start.
func followLogs(ctx context.Context, w io.Writer, logFile string, n int, since time.Time) error {
	offset, err := showLogs(w, logFile, n, since)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(logFile); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	file, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek log file: %w", err)
	}
	reader := bufio.NewReader(file)
	var partial string

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			if fi, err := file.Stat(); err == nil && fi.Size() < offset {
				if _, err := file.Seek(0, io.SeekStart); err != nil {
					return fmt.Errorf("failed to rewind log file: %w", err)
				}
				reader.Reset(file)
				offset, partial = 0, ""
			}
			for {
				chunk, err := reader.ReadString('\n')
				offset += int64(len(chunk))
				if err != nil {
					partial += chunk
					break
				}
				_, _ = io.WriteString(w, partial+chunk)
				partial = ""
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// extractTimestamp returns the time a log line was written, or the zero time.
// Text lines start with a local time.DateTime stamp, possibly behind a color
// escape; JSON lines carry a "time" field.
func extractTimestamp(line string) time.Time {
	text := line
	if strings.HasPrefix(text, "\x1b[") {
		if i := strings.IndexByte(text, 'm'); i >= 0 {
			text = text[i+1:]
		}
	}
	if len(text) >= len(time.DateTime) {
		if t, err := time.ParseInLocation(time.DateTime, text[:len(time.DateTime)], time.Local); err == nil {
			return t
		}
	}

	const timeKey = `"time":"`
	if idx := strings.Index(line, timeKey); idx >= 0 {
		rest := line[idx+len(timeKey):]
		if end := strings.IndexByte(rest, '"'); end >= 0 {
			if t, err := time.Parse(time.RFC3339Nano, rest[:end]); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
