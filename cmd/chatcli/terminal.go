package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/vovakirdan/yapyard-server/internal/client"
)

const helpText = `Commands:
  /contacts        list contacts with unseen counts
  /search <name>   find users by name
  /open <name|id>  open a conversation
  /close           close the conversation
  /online          refresh presence
  /quit            exit
Anything else is sent to the open conversation.`

type terminal struct {
	session *client.Session
	out     io.Writer
}

func (t *terminal) readCommands(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !t.handle(ctx, strings.TrimSpace(line)) {
				return
			}
		}
	}
}

// handle runs one input line and reports whether to keep going.
func (t *terminal) handle(ctx context.Context, line string) bool {
	if line == "" {
		return true
	}
	if !strings.HasPrefix(line, "/") {
		if err := t.session.Send(ctx, line, ""); err != nil {
			fmt.Fprintf(t.out, "! %v\n", err)
		}
		return true
	}

	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return false
	case "/help":
		fmt.Fprintln(t.out, helpText)
	case "/contacts":
		if err := t.session.LoadContacts(ctx); err != nil {
			fmt.Fprintf(t.out, "! %v\n", err)
			return true
		}
		t.printContacts()
	case "/search":
		found, err := t.session.API().SearchUsers(ctx, strings.TrimSpace(arg))
		if err != nil {
			fmt.Fprintf(t.out, "! %v\n", err)
			return true
		}
		for _, c := range found {
			fmt.Fprintf(t.out, "  %s (%s)\n", c.FullName, c.ID)
		}
	case "/open":
		peer, ok := t.lookup(strings.TrimSpace(arg))
		if !ok {
			fmt.Fprintf(t.out, "! no contact %q\n", arg)
			return true
		}
		if err := t.session.Open(ctx, peer.ID); err != nil {
			fmt.Fprintf(t.out, "! %v\n", err)
			return true
		}
		t.printConversation(peer)
	case "/close":
		t.session.CloseConversation()
	case "/online":
		if err := t.session.RefreshOnline(ctx); err != nil {
			fmt.Fprintf(t.out, "! %v\n", err)
		}
	default:
		fmt.Fprintln(t.out, helpText)
	}
	return true
}

func (t *terminal) lookup(key string) (client.Contact, bool) {
	if key == "" {
		return client.Contact{}, false
	}
	for _, c := range t.session.Store().Snapshot().Contacts {
		if string(c.ID) == key || strings.EqualFold(c.FullName, key) {
			return c, true
		}
	}
	return client.Contact{}, false
}

func (t *terminal) name(id client.UserID) string {
	if id == t.session.Store().Self() {
		return "me"
	}
	for _, c := range t.session.Store().Snapshot().Contacts {
		if c.ID == id {
			return c.FullName
		}
	}
	return string(id)
}

func (t *terminal) printContacts() {
	snap := t.session.Store().Snapshot()
	for _, c := range snap.Contacts {
		marker := " "
		if t.session.Store().IsOnline(c.ID) {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s (%s)", marker, c.FullName, c.ID)
		if n := snap.Unseen[c.ID]; n > 0 {
			line += fmt.Sprintf(" [%d unseen]", n)
		}
		fmt.Fprintln(t.out, line)
	}
}

func (t *terminal) printConversation(peer client.Contact) {
	fmt.Fprintf(t.out, "--- %s ---\n", peer.FullName)
	for _, m := range t.session.Store().Snapshot().View {
		t.printMessage(m)
	}
}

func (t *terminal) printMessage(m client.Message) {
	body := m.Text
	if m.Image != "" {
		body = strings.TrimSpace(body + " [image " + m.Image + "]")
	}
	fmt.Fprintf(t.out, "%s %s: %s\n", m.CreatedAt.Local().Format("15:04"), t.name(m.SenderID), body)
}

func (t *terminal) printUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-t.session.Updates():
			switch u.Kind {
			case client.UpdateMessage:
				switch u.Outcome {
				case client.AppendToOpen, client.AppendAsSelf:
					t.printMessage(u.Message)
				case client.IncrementUnseen:
					fmt.Fprintf(t.out, "(new message from %s)\n", t.name(u.Message.SenderID))
				}
			case client.UpdateError:
				fmt.Fprintf(t.out, "! %v\n", u.Err)
			}
		}
	}
}
