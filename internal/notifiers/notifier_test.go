package notifiers

// Compile-time checks that all channel types implement the Channel interface.
var (
	_ Channel = (*Telegram)(nil)
)
