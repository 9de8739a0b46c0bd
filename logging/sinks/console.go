package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"emberhold/server/logging"
)

type ConsoleSink struct {
	logger   *log.Logger
	useColor bool
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	return &ConsoleSink{
		logger:   log.New(w, "", log.LstdFlags),
		useColor: cfg.UseColor,
	}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	severity := formatSeverity(event.Severity)
	if s.useColor {
		severity = severityColor(event.Severity) + severity + ansiReset
	}
	s.logger.Printf("[%s] tick=%d actor=%s severity=%s%s%s",
		event.Type,
		event.Tick,
		formatEntity(event.Actor),
		severity,
		formatTargets(event.Targets),
		formatPayload(event.Payload),
	)
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

const (
	ansiReset  = "\x1b[0m"
	ansiGray   = "\x1b[90m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
)

func severityColor(sev logging.Severity) string {
	switch sev {
	case logging.SeverityDebug:
		return ansiGray
	case logging.SeverityInfo:
		return ansiGreen
	case logging.SeverityWarn:
		return ansiYellow
	case logging.SeverityError:
		return ansiRed
	default:
		return ansiReset
	}
}

func formatSeverity(sev logging.Severity) string {
	switch sev {
	case logging.SeverityDebug:
		return "debug"
	case logging.SeverityInfo:
		return "info"
	case logging.SeverityWarn:
		return "warn"
	case logging.SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

func formatTargets(targets []logging.EntityRef) string {
	if len(targets) == 0 {
		return ""
	}
	parts := make([]string, 0, len(targets))
	for _, t := range targets {
		parts = append(parts, formatEntity(t))
	}
	return " targets=" + strings.Join(parts, ",")
}

func formatPayload(payload any) string {
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(" payload=%v", payload)
	}
	return " payload=" + string(data)
}
