// Package voice manages streaming speech-to-speech sessions against
// the Gemini Live API.
//
// Each phone call owns exactly one Session: a WebSocket carrying
// 16kHz PCM16 caller audio upstream and 24kHz PCM16 model audio
// downstream. Sessions are created, addressed, and ended through a
// Manager keyed by call SID.
//
// # Usage
//
// Create a manager once and a session per call:
//
//	manager := voice.NewManager(voice.DefaultConfig().WithAPIKey(key))
//
//	session, err := manager.CreateSession(ctx, callSID, voice.SessionOptions{
//	    SystemPrompt: profile.Instructions(),
//	})
//	if err != nil {
//	    // a *SessionCreationError wraps the dial or setup failure
//	}
//
//	session.OnAudio(func(pcm []byte) {
//	    // 24kHz PCM16 from the model
//	})
//
//	manager.SendAudio(callSID, pcm16)
//	manager.EndSession(callSID)
//
// # Lifecycle
//
// CreateSession dials the Live API, sends the setup message, and
// blocks until the server acknowledges it. EndSession is idempotent;
// audio sent after a session closed is dropped silently. A background
// sweep (Manager.Run) ends sessions that have been idle for too long,
// covering calls whose stop event never arrived.
//
// # Dial variants
//
// With an API key the manager talks to the AI Studio endpoint. With
// UseVertex set it talks to the regional Vertex AI endpoint instead,
// authenticating with application default credentials.
package voice
