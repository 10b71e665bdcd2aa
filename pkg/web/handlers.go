package web

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pfeddy91/better-call-robots-sub000/pkg/agent"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/relay"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/twilio"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/webcall"
)

// registerAPIRoutes mounts the operations API. /calls/recent must come
// before the :sid routes, fiber matches in registration order.
func (s *Server) registerAPIRoutes(api fiber.Router) {
	api.Get("/calls", s.handleListCalls)
	api.Post("/calls", s.handleStartCall)
	api.Get("/calls/recent", s.handleRecentCalls)
	api.Get("/calls/:sid", s.handleCallInfo)
	api.Delete("/calls/:sid", s.handleEndCall)
	api.Get("/calls/:sid/transcript", s.handleTranscript)
	api.Get("/agents", s.handleListAgents)
	api.Get("/stats", s.handleStats)

	if s.webcalls != nil {
		api.Post("/webcall/offer", s.handleWebCallOffer)
		api.Delete("/webcall/:id", s.handleEndWebCall)
	}
}

// handleTwiML answers the provider's voice webhook with instructions
// to open the media stream. The agent comes from the webhook URL's
// agentId query parameter; outbound calls carry it automatically. The
// webhook's addressing form fields ride along as stream parameters,
// since the stream's start event does not repeat them.
func (s *Server) handleTwiML(c *fiber.Ctx) error {
	agentID := c.Query("agentId")

	var doc *twilio.TwiML
	if _, err := s.relay.Agents().Resolve(agentID); err != nil {
		s.logger.Error("no agent for incoming call", "agent_id", agentID, "error", err)
		doc = twilio.RejectTwiML("No agent is available to take this call. Goodbye.")
	} else {
		params := map[string]string{}
		if agentID != "" {
			params["agentId"] = agentID
		}
		if v := c.FormValue("From"); v != "" {
			params["from"] = v
		}
		if v := c.FormValue("To"); v != "" {
			params["to"] = v
		}
		if v := c.FormValue("Direction"); v != "" {
			params["direction"] = v
		}
		doc = twilio.StreamTwiML(s.config.StreamURL(), params)
	}

	out, err := doc.Render()
	if err != nil {
		s.logger.Error("twiml render failed", "error", err)
		return c.Status(500).JSON(fiber.Map{"error": "twiml render failed"})
	}
	c.Type("xml")
	return c.Send(out)
}

// handleHealth reports liveness plus the configured state of the two
// upstream dependencies. Credential presence is what is judged, the
// providers are never probed.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"service":   "relay",
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"telephony": upDown(s.config.TelephonyConfigured()),
		"ai":        upDown(s.config.AIConfigured()),
	})
}

func upDown(configured bool) string {
	if configured {
		return "up"
	}
	return "down"
}

// handleMetrics renders the counters in Prometheus text format.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	st := s.relay.GetStats()
	body := fmt.Sprintf(`# HELP relay_active_calls Active phone calls
# TYPE relay_active_calls gauge
relay_active_calls %d

# HELP relay_completed_calls Completed phone calls held in history
# TYPE relay_completed_calls gauge
relay_completed_calls %d

# HELP relay_frames_received Caller audio frames received
# TYPE relay_frames_received counter
relay_frames_received %d

# HELP relay_frames_sent Agent audio frames sent to callers
# TYPE relay_frames_sent counter
relay_frames_sent %d

# HELP relay_frames_dropped Audio frames dropped
# TYPE relay_frames_dropped counter
relay_frames_dropped %d

# HELP relay_sessions_active Open model sessions
# TYPE relay_sessions_active gauge
relay_sessions_active %d

# HELP relay_sessions_created Model sessions opened since start
# TYPE relay_sessions_created counter
relay_sessions_created %d

# HELP relay_sessions_failed Model session setup failures
# TYPE relay_sessions_failed counter
relay_sessions_failed %d

# HELP relay_audio_conversions Audio format conversions
# TYPE relay_audio_conversions counter
relay_audio_conversions %d

# HELP relay_audio_failures Audio conversion failures
# TYPE relay_audio_failures counter
relay_audio_failures %d
`,
		st.ActiveCalls, st.CompletedCalls,
		st.Telephony.FramesReceived, st.Telephony.FramesSent, st.Telephony.FramesDropped,
		st.Sessions.ActiveSessions, st.Sessions.SessionsCreated, st.Sessions.SessionsFailed,
		st.Audio.Conversions, st.Audio.Failures)

	if s.monitor != nil {
		ms := s.monitor.GetStats()
		body += fmt.Sprintf(`
# HELP relay_monitor_clients Connected dashboard clients
# TYPE relay_monitor_clients gauge
relay_monitor_clients %d

# HELP relay_monitor_events_sent Events broadcast to the dashboard
# TYPE relay_monitor_events_sent counter
relay_monitor_events_sent %d
`, ms.Clients, ms.EventsSent)
	}

	if s.webcalls != nil {
		ws := s.webcalls.GetStats()
		body += fmt.Sprintf(`
# HELP relay_webcalls_active Active browser calls
# TYPE relay_webcalls_active gauge
relay_webcalls_active %d

# HELP relay_webcall_packets_in Browser audio packets received
# TYPE relay_webcall_packets_in counter
relay_webcall_packets_in %d

# HELP relay_webcall_frames_out Agent audio frames sent to browsers
# TYPE relay_webcall_frames_out counter
relay_webcall_frames_out %d
`, ws.ActiveCalls, ws.PacketsIn, ws.FramesOut)
	}

	return c.SendString(body)
}

// handleListCalls returns every call in progress, both legs.
func (s *Server) handleListCalls(c *fiber.Ctx) error {
	calls := s.relay.ActiveCalls()
	if s.webcalls != nil {
		calls = append(calls, s.webcalls.ActiveCalls()...)
	}
	return c.JSON(fiber.Map{
		"calls": calls,
		"count": len(calls),
	})
}

// handleRecentCalls returns finished phone calls, newest first.
func (s *Server) handleRecentCalls(c *fiber.Ctx) error {
	calls := s.relay.RecentCalls()
	return c.JSON(fiber.Map{
		"calls": calls,
		"count": len(calls),
	})
}

// StartCallRequest is the body for the outbound call trigger.
type StartCallRequest struct {
	To      string `json:"to"`
	AgentID string `json:"agentId"`
}

// handleStartCall places an outbound call. The provider fetches TwiML
// from this service once the callee answers.
func (s *Server) handleStartCall(c *fiber.Ctx) error {
	var req StartCallRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.To == "" {
		return c.Status(400).JSON(fiber.Map{"error": "to is required"})
	}

	call, err := s.relay.StartOutboundCall(c.UserContext(), req.To, req.AgentID)
	if errors.Is(err, relay.ErrOutboundUnavailable) {
		return c.Status(503).JSON(fiber.Map{"error": "outbound calling is not configured"})
	}
	if err != nil {
		s.logger.Error("outbound call failed", "to", req.To, "error", err)
		return c.Status(502).JSON(fiber.Map{"error": err.Error()})
	}

	s.logger.Info("outbound call placed", "call_sid", call.SID, "to", call.To)
	return c.Status(201).JSON(call)
}

// handleCallInfo returns a snapshot of one active call, either leg.
func (s *Server) handleCallInfo(c *fiber.Ctx) error {
	sid := c.Params("sid")

	info, err := s.relay.CallInfo(sid)
	if err != nil && s.webcalls != nil {
		info, err = s.webcalls.CallInfo(sid)
	}
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "call not found"})
	}
	return c.JSON(info)
}

// handleEndCall hangs up a call on operator request.
func (s *Server) handleEndCall(c *fiber.Ctx) error {
	sid := c.Params("sid")

	err := s.relay.EndCall(sid)
	if errors.Is(err, relay.ErrCallNotFound) && s.webcalls != nil {
		err = s.webcalls.EndCall(sid)
	}
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "call not found"})
	}

	s.logger.Info("call ended via API", "call_sid", sid)
	return c.JSON(fiber.Map{
		"status":   "ending",
		"call_sid": sid,
	})
}

// handleTranscript returns the recognized speech of one active call.
func (s *Server) handleTranscript(c *fiber.Ctx) error {
	sid := c.Params("sid")

	entries, err := s.relay.Transcript(sid)
	if err != nil && s.webcalls != nil {
		entries, err = s.webcalls.Transcript(sid)
	}
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "call not found"})
	}
	return c.JSON(fiber.Map{
		"call_sid":   sid,
		"transcript": entries,
		"count":      len(entries),
	})
}

// handleListAgents returns the answering personas on offer.
func (s *Server) handleListAgents(c *fiber.Ctx) error {
	reg := s.relay.Agents()

	profiles := make([]*agent.Profile, 0)
	for _, id := range reg.List() {
		if profile, err := reg.Get(id); err == nil {
			profiles = append(profiles, profile)
		}
	}
	return c.JSON(fiber.Map{
		"agents": profiles,
		"count":  len(profiles),
	})
}

// handleStats returns the counters of every layer.
func (s *Server) handleStats(c *fiber.Ctx) error {
	payload := fiber.Map{
		"relay":  s.relay.GetStats(),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}
	if s.monitor != nil {
		payload["monitor"] = s.monitor.GetStats()
	}
	if s.webcalls != nil {
		payload["webcalls"] = s.webcalls.GetStats()
	}
	return c.JSON(payload)
}

// WebCallOfferRequest is the body for a browser test call.
type WebCallOfferRequest struct {
	SDP     string `json:"sdp"`
	AgentID string `json:"agentId"`
}

// handleWebCallOffer answers a browser's SDP offer and opens a model
// session for it.
func (s *Server) handleWebCallOffer(c *fiber.Ctx) error {
	var req WebCallOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	answer, err := s.webcalls.HandleOffer(c.UserContext(), req.SDP, req.AgentID)
	if errors.Is(err, webcall.ErrEmptyOffer) {
		return c.Status(400).JSON(fiber.Map{"error": "sdp is required"})
	}
	if err != nil {
		s.logger.Error("browser offer failed", "error", err)
		return c.Status(502).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(answer)
}

// handleEndWebCall hangs up a browser call.
func (s *Server) handleEndWebCall(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.webcalls.EndCall(id); err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "call not found"})
	}
	return c.JSON(fiber.Map{
		"status":  "ended",
		"call_id": id,
	})
}
