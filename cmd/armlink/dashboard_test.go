package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gwillem/armlink/pkg/robot"
	"github.com/gwillem/armlink/pkg/session"
)

func TestWaitForSnapshot(t *testing.T) {
	sess := session.New(session.Config{Settings: robot.DefaultSettings()},
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer sess.Close()

	if err := sess.SetTarget(robot.Base, 5); err != nil {
		t.Fatal(err)
	}
	msg, ok := waitForSnapshot(sess)().(snapshotMsg)
	if !ok {
		t.Fatal("expected a snapshot")
	}
	if msg.Target.Base != 5 {
		t.Errorf("Target.Base = %v, want 5", msg.Target.Base)
	}

	got := make(chan tea.Msg, 1)
	go func() { got <- waitForSnapshot(sess)() }()
	sess.Close()
	select {
	case m := <-got:
		if m != nil {
			t.Errorf("after Close got %T, want nil", m)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter still blocked after Close")
	}
}
