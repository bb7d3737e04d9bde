package telemetry

import (
	"time"

	"github.com/rs/zerolog"
)

// Hooks centralizes server lifecycle and dataset logging. It is intentionally
// minimal; metrics backends can be added later under this package.
type Hooks struct {
	logger zerolog.Logger
}

// NewHooks constructs a Hooks instance with the provided logger.
func NewHooks(logger zerolog.Logger) *Hooks {
	return &Hooks{logger: logger}
}

// OnServerStart is called when the server begins accepting connections.
func (h *Hooks) OnServerStart(transport string) {
	h.logger.Info().Str("transport", transport).Msg("MCP server starting")
}

// OnSessionStart records the start of a client session.
func (h *Hooks) OnSessionStart(sessionID string) {
	h.logger.Info().Str("session_id", sessionID).Msg("session registered")
}

// OnSessionEnd records the end of a client session.
func (h *Hooks) OnSessionEnd(sessionID string) {
	h.logger.Info().Str("session_id", sessionID).Msg("session unregistered")
}

// OnToolServed logs a completed tool invocation.
func (h *Hooks) OnToolServed(toolName string) {
	h.logger.Info().Str("tool", toolName).Msg("tool call served")
}

// OnToolsListed logs tool discovery requests. Kept light: count only.
func (h *Hooks) OnToolsListed(count int) {
	h.logger.Info().Int("tools", count).Msg("list_tools served")
}

// OnRequestError logs protocol-level request failures.
func (h *Hooks) OnRequestError(method string, err error) {
	h.logger.Error().Str("method", method).Err(err).Msg("request error")
}

// OnDatasetOpen logs dataset loads with their source identity.
func (h *Hooks) OnDatasetOpen(datasetID, path string, rows int, duration time.Duration, err error) {
	if err != nil {
		h.logger.Error().Str("path", path).Dur("duration", duration).Err(err).Msg("dataset open error")
		return
	}
	h.logger.Info().Str("dataset_id", datasetID).Str("path", path).Int("rows", rows).Dur("duration", duration).Msg("dataset opened")
}
