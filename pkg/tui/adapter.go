package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/poncho-research/pkg/events"
)

// EventMsg событие агента как Bubble Tea сообщение.
type EventMsg events.Event

// ReceiveEventCmd возвращает Cmd, который ждёт следующее событие.
//
// Закрытый канал завершает программу.
func ReceiveEventCmd(sub events.Subscriber) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub.Events()
		if !ok {
			return tea.QuitMsg{}
		}
		return EventMsg(event)
	}
}
