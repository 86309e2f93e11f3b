package server

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/channel-gateway/pkg/commsutil"
	"github.com/morezero/channel-gateway/pkg/dispatcher"
)

const commsLogPrefix = "server:comms"

// handleMessage serves one request envelope received over COMMS. Every
// message with a reply subject gets exactly one JSON response.
func (s *Server) handleMessage(msg *comms.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()

	resp := s.disp.DispatchBytes(ctx, msg.Data)

	if msg.Reply == "" {
		slog.Debug(fmt.Sprintf("%s - request %s has no reply subject", commsLogPrefix, resp.ID))
		return
	}
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response %s: %v", commsLogPrefix, resp.ID, err))
		data, _ = commsutil.EncodePayload(encodeFailure(resp.ID, err))
	}
	if err := msg.Respond(data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to respond to %s: %v", commsLogPrefix, resp.ID, err))
	}
}

func encodeFailure(id string, err error) *dispatcher.Response {
	return dispatcher.ErrorResponse(id, &dispatcher.Error{
		Kind:    dispatcher.KindInternal,
		Message: fmt.Sprintf("failed to encode result: %v", err),
	})
}
