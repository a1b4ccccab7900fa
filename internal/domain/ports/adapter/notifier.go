package adapter

// Notifier receives user-facing messages emitted by the confirmation loop.
// Delivery (push, in-app, bot) is a collaborator concern behind this port.
type Notifier interface {
	Notify(userID, message string)
}
