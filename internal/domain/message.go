package domain

// Channel is a named broadcast group.
type Channel string

const (
	ChannelMoodUpdates Channel = "mood_updates"
	ChannelPlayerState Channel = "player_state"
)

// Channels lists every known channel in declaration order.
var Channels = []Channel{ChannelMoodUpdates, ChannelPlayerState}

type MessageType string

const (
	MessageConnectionEstablished MessageType = "connection_established"
	MessagePong                  MessageType = "pong"
	MessageMoodUpdate            MessageType = "mood_update"
	MessageError                 MessageType = "error"
)

const (
	WelcomeText         = "Connected to Spot' 95 real-time service"
	AnalysisErrorText   = "Error analyzing track"
	CredentialErrorText = "Spotify authorization expired, please log in again"
)

// Message is the JSON envelope sent to streaming clients.
type Message struct {
	Type      MessageType `json:"type"`
	Message   string      `json:"message,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"`
	Data      *MoodUpdate `json:"data,omitempty"`
}

// MoodUpdate is the payload of a mood_update message.
type MoodUpdate struct {
	Mood          string        `json:"mood"`
	Emoji         string        `json:"emoji"`
	Confidence    float64       `json:"confidence"`
	Description   string        `json:"description"`
	Track         TrackSnapshot `json:"track"`
	AudioFeatures FeatureVector `json:"audio_features"`
	Timestamp     int64         `json:"timestamp"`
}

func ConnectionEstablishedMessage(timestampMs int64) Message {
	return Message{Type: MessageConnectionEstablished, Message: WelcomeText, Timestamp: timestampMs}
}

func PongMessage(timestampMs int64) Message {
	return Message{Type: MessagePong, Timestamp: timestampMs}
}

func MoodUpdateMessage(update MoodUpdate) Message {
	return Message{Type: MessageMoodUpdate, Data: &update}
}

func ErrorMessage(text string) Message {
	return Message{Type: MessageError, Message: text}
}
