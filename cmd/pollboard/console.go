package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"pollboard/internal/app"
	"pollboard/pkg/types"
)

// console is the in-process presentation layer: it translates typed
// commands into store operations and re-reads state on change
// notifications, holding no authoritative state of its own.
type console struct {
	app       *app.Application
	in        io.Reader
	out       io.Writer
	teacherID string

	// Issued student identities, remembered per name so an "answer" or
	// "chat" command can replay the id the store handed out on join.
	studentIDs map[string]string
}

func newConsole(application *app.Application, in io.Reader, out io.Writer) *console {
	return &console{
		app:        application,
		in:         in,
		out:        out,
		teacherID:  uuid.New().String(),
		studentIDs: make(map[string]string),
	}
}

func (c *console) run(ctx context.Context) {
	store := c.app.Store()

	// Announce poll closures driven by the countdown or auto-close, which
	// happen independently of any typed command.
	wasActive := false
	unsubscribe := store.Subscribe(func() {
		poll := store.CurrentPoll()
		active := poll != nil && poll.IsActive
		if wasActive && !active && poll != nil {
			c.printResults(poll)
		}
		wasActive = active
	})
	defer unsubscribe()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Fprintln(c.out, `pollboard console — type "help" for commands`)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := c.dispatch(strings.TrimSpace(line)); quit {
				return
			}
		}
	}
}

// dispatch executes one command line; it returns true on quit.
func (c *console) dispatch(line string) bool {
	if line == "" {
		return false
	}
	command, rest, _ := strings.Cut(line, " ")
	store := c.app.Store()

	switch command {
	case "help":
		c.printHelp()

	case "join":
		name := strings.TrimSpace(rest)
		student, err := store.AddStudent(name)
		if err != nil {
			fmt.Fprintln(c.out, "join failed:", err)
			return false
		}
		c.studentIDs[student.Name] = student.ID
		fmt.Fprintf(c.out, "%s joined (%d online)\n", student.Name, store.OnlineCount())

	case "poll":
		c.createPoll(rest)

	case "answer":
		name, option, _ := strings.Cut(strings.TrimSpace(rest), " ")
		id, ok := c.studentIDs[name]
		if !ok {
			fmt.Fprintf(c.out, "unknown student %q — join first\n", name)
			return false
		}
		if err := store.SubmitAnswer(id, strings.TrimSpace(option)); err != nil {
			fmt.Fprintln(c.out, "answer rejected:", err)
			return false
		}
		fmt.Fprintf(c.out, "recorded %s -> %s\n", name, strings.TrimSpace(option))

	case "chat":
		c.sendChat(rest)

	case "end":
		store.EndPoll()

	case "kick":
		name := strings.TrimSpace(rest)
		id, ok := c.studentIDs[name]
		if !ok {
			fmt.Fprintf(c.out, "unknown student %q\n", name)
			return false
		}
		if err := store.KickStudent(id); err != nil {
			fmt.Fprintln(c.out, "kick failed:", err)
			return false
		}
		delete(c.studentIDs, name)
		fmt.Fprintf(c.out, "%s removed from roster\n", name)

	case "status":
		c.printStatus()

	case "history":
		for i, poll := range store.PollHistory() {
			fmt.Fprintf(c.out, "%d. %s (%d responses)\n", i+1, poll.Question, poll.TotalResponses)
		}

	case "export":
		c.export(strings.TrimSpace(rest))

	case "clear":
		store.ClearAllData()
		c.studentIDs = make(map[string]string)
		fmt.Fprintln(c.out, "all session data cleared")

	case "quit", "exit":
		return true

	default:
		fmt.Fprintf(c.out, "unknown command %q — type \"help\"\n", command)
	}
	return false
}

// createPoll parses `poll [seconds] Question | Option | *CorrectOption`.
func (c *console) createPoll(rest string) {
	store := c.app.Store()
	duration := c.app.Config().Session.DefaultPollDuration

	rest = strings.TrimSpace(rest)
	if first, remainder, ok := strings.Cut(rest, " "); ok {
		if seconds, err := strconv.Atoi(first); err == nil {
			duration = time.Duration(seconds) * time.Second
			rest = remainder
		}
	}

	segments := strings.Split(rest, "|")
	if len(segments) < 3 {
		fmt.Fprintln(c.out, `usage: poll [seconds] Question | Option | *CorrectOption`)
		return
	}

	question := strings.TrimSpace(segments[0])
	options := make([]string, 0, len(segments)-1)
	correct := ""
	for _, segment := range segments[1:] {
		option := strings.TrimSpace(segment)
		if strings.HasPrefix(option, "*") {
			option = strings.TrimSpace(strings.TrimPrefix(option, "*"))
			correct = option
		}
		options = append(options, option)
	}

	poll, err := store.CreatePoll(question, options, duration, correct)
	if err != nil {
		fmt.Fprintln(c.out, "poll rejected:", err)
		return
	}
	fmt.Fprintf(c.out, "poll %q started, %s on the clock\n", poll.Question, duration)
}

func (c *console) sendChat(rest string) {
	name, body, _ := strings.Cut(strings.TrimSpace(rest), " ")
	var msg *types.ChatMessage
	var err error
	if name == "teacher" {
		msg, err = c.app.Store().SendChatMessage(c.teacherID, "Teacher", types.RoleTeacher, body)
	} else {
		id, ok := c.studentIDs[name]
		if !ok {
			fmt.Fprintf(c.out, "unknown student %q — join first\n", name)
			return
		}
		msg, err = c.app.Store().SendChatMessage(id, name, types.RoleStudent, body)
	}
	if err != nil {
		fmt.Fprintln(c.out, "chat rejected:", err)
		return
	}
	fmt.Fprintf(c.out, "[%s] %s: %s\n", msg.Timestamp.Format("15:04:05"), msg.SenderName, msg.Body)
}

func (c *console) printStatus() {
	store := c.app.Store()
	poll := store.CurrentPoll()
	if poll == nil {
		fmt.Fprintln(c.out, "no poll yet")
	} else if poll.IsActive {
		fmt.Fprintf(c.out, "ACTIVE %q — %ds left, %d/%d answered\n",
			poll.Question, store.TimeRemaining(), len(poll.StudentsAnswered), store.OnlineCount())
		for _, option := range poll.Options {
			fmt.Fprintf(c.out, "  %-20s %d\n", option, poll.Responses[option])
		}
	} else {
		fmt.Fprintf(c.out, "last poll %q closed\n", poll.Question)
	}

	persistence := store.Persistence()
	if persistence.LastError != "" {
		fmt.Fprintln(c.out, "persistence degraded:", persistence.LastError)
	} else if !persistence.LastSavedAt.IsZero() {
		fmt.Fprintf(c.out, "saved locally at %s (%d writes)\n",
			persistence.LastSavedAt.Format("15:04:05"), persistence.SaveCount)
	}
}

func (c *console) printResults(poll *types.Poll) {
	fmt.Fprintf(c.out, "poll %q closed — %d responses\n", poll.Question, poll.TotalResponses)
	for _, option := range poll.Options {
		marker := ""
		if poll.IsCorrect(option) {
			marker = " (correct)"
		}
		fmt.Fprintf(c.out, "  %-20s %d%s\n", option, poll.Responses[option], marker)
	}
}

func (c *console) export(path string) {
	if path == "" {
		path = fmt.Sprintf("pollboard-export-%s.json", time.Now().Format("20060102-150405"))
	}
	data, err := json.MarshalIndent(c.app.Store().Export(), "", "  ")
	if err != nil {
		fmt.Fprintln(c.out, "export failed:", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintln(c.out, "export failed:", err)
		return
	}
	fmt.Fprintln(c.out, "exported to", path)
}

func (c *console) printHelp() {
	fmt.Fprint(c.out, `commands:
  join <name>                          student joins (rejoining reattaches)
  poll [secs] Question | Opt | *Opt    start a poll (* marks correct answer)
  answer <name> <option>               submit a student's vote
  chat <name|teacher> <message>        send a chat message
  status                               current poll, tallies, save state
  history                              closed polls, most recent first
  end                                  close the current poll
  kick <name>                          remove a student from the roster
  export [path]                        write a JSON snapshot
  clear                                wipe all session data
  quit
`)
}
