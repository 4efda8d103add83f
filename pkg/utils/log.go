package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// LogPipeWithFields logs every line read from pipe with the given fields attached.
func LogPipeWithFields(pipe io.ReadCloser, level log.Level, fields log.Fields) {
	defer pipe.Close()
	entry := log.NewEntry(log.StandardLogger()).WithFields(fields)
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		entry.Log(level, scanner.Text())
	}
}

// ConfigureLogging sets the level and formatter of the standard logger.
// Text output is colored only when stderr is a terminal.
func ConfigureLogging(format string, debug bool) error {
	if debug {
		log.SetLevel(log.DebugLevel)
	}
	switch format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
			ForceColors:   term.IsTerminal(int(os.Stderr.Fd())),
		})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q, must be one of: text, json", format)
	}
	return nil
}
