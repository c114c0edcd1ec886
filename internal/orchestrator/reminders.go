package orchestrator

import (
	"context"
	"time"
)

// Reminder enhances raw user input with system-derived hints before it
// enters the prompt. Each returned string becomes one system-reminder
// segment prepended to the user content.
type Reminder interface {
	Enhance(ctx context.Context, userText string) []string
}

// ReminderFunc adapts a function to the Reminder interface.
type ReminderFunc func(ctx context.Context, userText string) []string

func (f ReminderFunc) Enhance(ctx context.Context, userText string) []string {
	return f(ctx, userText)
}

// NoReminders performs no enhancement.
func NoReminders() Reminder {
	return ReminderFunc(func(context.Context, string) []string { return nil })
}

// DateReminder injects the current date so models reason about "today"
// correctly.
func DateReminder() Reminder {
	return ReminderFunc(func(context.Context, string) []string {
		return []string{"Current date: " + time.Now().Format("2006-01-02")}
	})
}

// CombineReminders concatenates the segments of several reminders.
func CombineReminders(reminders ...Reminder) Reminder {
	return ReminderFunc(func(ctx context.Context, userText string) []string {
		var out []string
		for _, r := range reminders {
			if r == nil {
				continue
			}
			out = append(out, r.Enhance(ctx, userText)...)
		}
		return out
	})
}
