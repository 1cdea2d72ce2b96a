package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/sqlines/studio/internal/session"
	"github.com/sqlines/studio/internal/tabs"
)

// withSession opens the saved session, runs fn and checkpoints the result.
// One-shot commands always read and write the checkpoint, whatever
// save_session says, since the checkpoint is the only state they share.
func withSession(ctx context.Context, fn func(s *session.Session) error) error {
	c := cfg
	c.SaveSession = true
	s, err := session.Open(c, &session.Options{Logger: logger})
	if err != nil {
		return err
	}
	fnErr := fn(s)
	if err := s.Close(ctx); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}

// parseIndex parses a tab index argument.
func parseIndex(arg string) (int, error) {
	i, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid tab index %q", arg)
	}
	return i, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// currentTab returns the tab to act on: index when it is not negative,
// otherwise the current tab.
func currentTab(s *session.Session, index int) (int, error) {
	if index < 0 {
		index = s.Store().CurrentIndex()
	}
	if err := tabs.CheckRange(index, s.Store().CountTabs()); err != nil {
		return 0, err
	}
	return index, nil
}
