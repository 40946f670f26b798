package domain

// Commands are the inbound intents a connection can express once subscribed.

type SendMessageCommand struct {
	ConnectionID ConnectionID
	ChannelID    ChannelID
	Payload      Payload
}

type StartDmCommand struct {
	ConnectionID ConnectionID
	OtherUserID  string
}

type SubscribeCommand struct {
	ConnectionID ConnectionID
	ChannelID    ChannelID
}

type TypingCommand struct {
	ConnectionID ConnectionID
	ChannelID    ChannelID
	// Active distinguishes a typing refresh from an explicit stop.
	Active bool
}
