package core

// commandKind describes a mutation or delivery the hub must process.
type commandKind int

const (
	commandRegister commandKind = iota
	commandUnregister
	commandDeliver
	commandSnapshot
)

// command is processed by the hub goroutine one at a time.
type command struct {
	kind    commandKind
	client  *Client
	message *Message
	reply   chan []UserID
}
