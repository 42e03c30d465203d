package notifiers

// Channel delivers rendered message text to a recipient
type Channel interface {
	// Name returns the channel identifier
	Name() string
	// Send delivers text to the recipient (a chat ID or channel name)
	Send(recipient, text string) error
}
