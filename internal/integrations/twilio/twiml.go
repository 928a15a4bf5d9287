package twilio

import (
	"fmt"

	"github.com/twilio/twilio-go/twiml"
)

// BuildAgentCallTwiML answers an inbound call by bridging the caller into the
// voice agent's realtime conversation stream.
func BuildAgentCallTwiML(streamURL string) (string, error) {
	stream := &twiml.VoiceStream{Url: streamURL}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}

	doc, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		return "", fmt.Errorf("failed to render call response: %w", err)
	}
	return doc, nil
}

// BuildVoicemailTwiML plays an apology and records a message.
func BuildVoicemailTwiML(restaurantName string) (string, error) {
	say := &twiml.VoiceSay{
		Message: fmt.Sprintf("Thank you for calling %s. We cannot take your call right now. Please leave a message after the tone.", restaurantName),
	}
	record := &twiml.VoiceRecord{
		MaxLength: "120",
		PlayBeep:  "true",
	}

	doc, err := twiml.Voice([]twiml.Element{say, record})
	if err != nil {
		return "", fmt.Errorf("failed to render voicemail response: %w", err)
	}
	return doc, nil
}

// BuildUnavailableTwiML tells the caller the line is unavailable and hangs up.
func BuildUnavailableTwiML(restaurantName string) (string, error) {
	say := &twiml.VoiceSay{
		Message: fmt.Sprintf("Thank you for calling %s. We are currently unavailable. Please try again later.", restaurantName),
	}
	hangup := &twiml.VoiceHangup{}

	doc, err := twiml.Voice([]twiml.Element{say, hangup})
	if err != nil {
		return "", fmt.Errorf("failed to render unavailable response: %w", err)
	}
	return doc, nil
}
