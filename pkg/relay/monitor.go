package relay

// Monitor receives call lifecycle notifications, typically to fan out
// to dashboard WebSocket clients. All methods are called from relay
// goroutines and must not block.
type Monitor interface {
	// OnCallStarted fires when a media stream is accepted.
	OnCallStarted(info CallInfo)

	// OnCallEnded fires once per call, after teardown.
	OnCallEnded(info CallInfo)

	// OnTranscript fires for each recognized speech fragment.
	OnTranscript(callSID, role, text string)

	// OnCallEvent fires for notable moments: session ready,
	// interruptions, apologies, DTMF digits.
	OnCallEvent(callSID, event string)
}

// nopMonitor is used when no monitor is wired.
type nopMonitor struct{}

func (nopMonitor) OnCallStarted(CallInfo)              {}
func (nopMonitor) OnCallEnded(CallInfo)                {}
func (nopMonitor) OnTranscript(string, string, string) {}
func (nopMonitor) OnCallEvent(string, string)          {}
