package twilio

import (
	"encoding/xml"
	"fmt"
	"sort"
)

// TwiML is the root document returned to Twilio's voice webhook.
type TwiML struct {
	XMLName xml.Name `xml:"Response"`
	Say     []Say    `xml:"Say,omitempty"`
	Connect *Connect `xml:"Connect,omitempty"`
	Hangup  *Hangup  `xml:"Hangup,omitempty"`
}

// Say speaks text to the caller with Twilio's built-in TTS.
type Say struct {
	Voice string `xml:"voice,attr,omitempty"`
	Text  string `xml:",chardata"`
}

// Connect hands the call to a bidirectional media stream. The call
// stays connected until the stream ends.
type Connect struct {
	Stream Stream `xml:"Stream"`
}

// Stream points Twilio's media fork at a WebSocket endpoint.
type Stream struct {
	URL        string      `xml:"url,attr"`
	Parameters []Parameter `xml:"Parameter,omitempty"`
}

// Parameter is passed through to the stream's start event as a custom
// parameter.
type Parameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Hangup ends the call.
type Hangup struct{}

// StreamTwiML builds the response that connects an incoming call to
// the audio WebSocket at wsURL. params become customParameters on the
// stream's start event.
func StreamTwiML(wsURL string, params map[string]string) *TwiML {
	stream := Stream{URL: wsURL}

	// Sorted for stable output.
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stream.Parameters = append(stream.Parameters, Parameter{Name: name, Value: params[name]})
	}

	return &TwiML{Connect: &Connect{Stream: stream}}
}

// RejectTwiML builds a response that speaks a message and hangs up,
// used when the relay cannot take the call.
func RejectTwiML(message string) *TwiML {
	return &TwiML{
		Say:    []Say{{Text: message}},
		Hangup: &Hangup{},
	}
}

// Render serializes the document with the XML declaration Twilio
// expects.
func (t *TwiML) Render() ([]byte, error) {
	body, err := xml.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("twilio: render twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
