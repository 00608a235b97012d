package notify

import (
	"fmt"

	"github.com/example/badgerwatch/internal/enrollment"
)

const testMessageText = "🧪 This is a test message from BadgerWatch! If you're seeing this, your notification setup is working correctly."

// Message is one notification in both of its renderings.
type Message struct {
	Title string
	Body  string
	Text  string
}

// ForChange renders a change for the desktop and for text relays.
func ForChange(c enrollment.WatchedCourse, ch enrollment.Change) Message {
	m := Message{Title: c.Designation}
	switch ch.Kind {
	case enrollment.StatusChanged:
		m.Body = fmt.Sprintf("%s section is now %s!", c.Title, ch.NewStatus)
		m.Text = fmt.Sprintf("🚨%s %s!🚨 %s is %s", c.Designation, ch.NewStatus, c.Title, ch.NewStatus)
	case enrollment.SeatsIncreased:
		m.Body = fmt.Sprintf("Someone just dropped: %s – there are now %d open seats!", c.Title, ch.NewSeats)
		m.Text = fmt.Sprintf("🚨%s Someone just dropped!🚨 %s there are now %d open seats!", c.Designation, c.Title, ch.NewSeats)
	case enrollment.SeatsDecreased:
		m.Body = fmt.Sprintf("Someone just enrolled: %s, there are now %d open seats!", c.Title, ch.NewSeats)
		m.Text = fmt.Sprintf("🚨%s Someone just enrolled!🚨 %s there are now %d open seats!", c.Designation, c.Title, ch.NewSeats)
	default:
		m.Body = fmt.Sprintf("%s changed", c.Title)
		m.Text = fmt.Sprintf("%s: %s changed", c.Designation, c.Title)
	}
	return m
}
