package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/theimaginaryfoundation/ask-scriptures/insight"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/conversation"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/store"
)

const helpText = `Commands:
  /new [title]      start a new session
  /sessions         list sessions, most recent first
  /use <n|id>       switch to a session from /sessions
  /title <text>     rename the current session
  /delete [n|id]    delete a session (default: current)
  /profile          show level, points and achievements
  /style <style>    set learning style: balanced, intellectual, devotional, practical
  /export [force]   write the journal as markdown shards
  /help             show this help
  /quit             leave
Anything else is asked as a question.`

type chat struct {
	store *store.Store
	guide *conversation.Guide
	rng   insight.RandSource
	out   io.Writer

	exportDir string
	maxBytes  int

	// listed is the order printed by the last /sessions, for numeric /use and /delete.
	listed []string
}

var errQuit = errors.New("quit")

func (c *chat) run(ctx context.Context, in io.Reader) error {
	c.welcome()
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprintf(c.out, "\n%s\n> ", insight.Placeholder(c.rng))
		if !sc.Scan() {
			break
		}
		err := c.handleLine(ctx, sc.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
	return sc.Err()
}

func (c *chat) welcome() {
	st := c.store.Stats()
	fmt.Fprintln(c.out, "Ask Scriptures: conversations with the Bhagavad Gita")
	if st.TotalQuestions == 0 {
		fmt.Fprintln(c.out, "Some places to begin:")
		n := 4
		if len(insight.Suggestions) < n {
			n = len(insight.Suggestions)
		}
		for _, s := range insight.Suggestions[:n] {
			fmt.Fprintf(c.out, "  - %s\n", s)
		}
	} else {
		fmt.Fprintf(c.out, "Welcome back. Level %d, %d wisdom points over %d questions.\n",
			st.Level, st.WisdomPoints, st.TotalQuestions)
	}
	fmt.Fprintln(c.out, "Type /help for commands.")
}

func (c *chat) handleLine(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return c.ask(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(cmd) {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		fmt.Fprintln(c.out, helpText)
		return nil
	case "/new":
		id, err := c.store.CreateSession(ctx, arg)
		if err != nil {
			return err
		}
		cs, err := c.store.Session(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Started %q.\n", cs.Title)
		return nil
	case "/sessions":
		c.listSessions()
		return nil
	case "/use":
		id, err := c.resolve(arg)
		if err != nil {
			return err
		}
		if err := c.store.SetActiveSession(ctx, id); err != nil {
			return err
		}
		cs, err := c.store.Session(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Now in %q (%d messages).\n", cs.Title, len(cs.Messages))
		return nil
	case "/title":
		id := c.store.ActiveSessionID()
		if id == "" {
			return errors.New("no current session")
		}
		if err := c.store.SetSessionTitle(ctx, id, arg); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Renamed to %q.\n", arg)
		return nil
	case "/delete":
		id := c.store.ActiveSessionID()
		if arg != "" {
			var err error
			if id, err = c.resolve(arg); err != nil {
				return err
			}
		}
		if id == "" {
			return errors.New("no current session")
		}
		if err := c.store.DeleteSession(ctx, id); err != nil {
			return err
		}
		c.listed = nil
		fmt.Fprintln(c.out, "Deleted.")
		return nil
	case "/profile":
		c.printProfile()
		return nil
	case "/style":
		ls, err := insight.ParseLearningStyle(arg)
		if err != nil {
			return err
		}
		if err := c.store.SetLearningStyle(ctx, ls); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Learning style set to %s.\n", ls)
		return nil
	case "/export":
		return c.export(arg == "force")
	default:
		return fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

func (c *chat) ask(ctx context.Context, question string) error {
	res, err := c.guide.Ask(ctx, c.store.ActiveSessionID(), question)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\n%s\n", res.Reply.Content)
	if res.Abandoned {
		return nil
	}
	md := res.Reply.Metadata
	fmt.Fprintf(c.out, "\n[%s] +%d wisdom points", res.Title, res.Wisdom.Total)
	if md != nil && len(md.Topics) > 0 {
		names := make([]string, 0, len(md.Topics))
		for _, t := range md.Topics {
			names = append(names, string(t))
		}
		fmt.Fprintf(c.out, " | topics: %s", strings.Join(names, ", "))
	}
	fmt.Fprintln(c.out)
	for _, a := range res.Unlocked {
		fmt.Fprintf(c.out, "%s Achievement unlocked: %s. %s\n", a.Icon, a.Title, a.Description)
	}
	if res.Breakthrough != nil {
		fmt.Fprintf(c.out, "Breakthrough: %s\n", res.Breakthrough.Description)
	}
	return nil
}

func (c *chat) listSessions() {
	sessions := c.store.Sessions()
	if len(sessions) == 0 {
		fmt.Fprintln(c.out, "No sessions yet. Ask a question to start one.")
		return
	}
	active := c.store.ActiveSessionID()
	c.listed = c.listed[:0]
	for i, cs := range sessions {
		mark := " "
		if cs.ID == active {
			mark = "*"
		}
		fmt.Fprintf(c.out, "%s %d. %s (%d messages, %s)\n", mark, i+1, cs.Title, len(cs.Messages), cs.DominantSentiment())
		c.listed = append(c.listed, cs.ID)
	}
}

// resolve accepts a 1-based position from the last /sessions listing or a session id.
func (c *chat) resolve(arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("missing session: %w", insight.ErrInvalidInput)
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(c.listed) {
			return "", fmt.Errorf("no session #%d in the last listing: %w", n, insight.ErrNotFound)
		}
		return c.listed[n-1], nil
	}
	return arg, nil
}

func (c *chat) printProfile() {
	st := c.store.Stats()
	fmt.Fprintf(c.out, "Level %d (%d/100 to next), %d wisdom points\n", st.Level, st.LevelProgress, st.WisdomPoints)
	fmt.Fprintf(c.out, "%d questions across %d sessions, learning style %s\n", st.TotalQuestions, st.Sessions, st.LearningStyle)
	if len(st.TopInterests) > 0 {
		names := make([]string, 0, len(st.TopInterests))
		for _, t := range st.TopInterests {
			names = append(names, string(t))
		}
		fmt.Fprintf(c.out, "Top interests: %s\n", strings.Join(names, ", "))
	}
	if len(st.RecentAchievements) == 0 {
		return
	}
	fmt.Fprintf(c.out, "Achievements (%d):\n", st.Achievements)
	for _, id := range st.RecentAchievements {
		a := insight.DisplayAchievement(id)
		fmt.Fprintf(c.out, "  %s %s: %s\n", a.Icon, a.Title, a.Description)
	}
}

func (c *chat) export(overwrite bool) error {
	index, err := store.WriteSessionShards(c.store.Sessions(), store.ExportOptions{
		OutDir:           c.exportDir,
		MaxBytes:         c.maxBytes,
		Overwrite:        overwrite,
		IncludeAnalytics: true,
	})
	if err != nil {
		return err
	}
	indexPath := filepath.Join(c.exportDir, "journal_index.jsonl")
	if err := store.WriteExportIndex(indexPath, index, overwrite); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Exported %d sessions to %s\n", len(index), c.exportDir)
	return nil
}
