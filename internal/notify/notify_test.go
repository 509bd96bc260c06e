package notify

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestNewFallsBackToLogNotifier(t *testing.T) {
	log, _ := test.NewNullLogger()

	if _, ok := New("", "Academy", "noreply@academy.test", log).(*LogNotifier); !ok {
		t.Fatal("expected LogNotifier without api key")
	}
	if _, ok := New("SG.key", "Academy", "noreply@academy.test", log).(*SendGrid); !ok {
		t.Fatal("expected SendGrid notifier with api key")
	}
}

func TestLogNotifierWritesEntry(t *testing.T) {
	log, hook := test.NewNullLogger()
	n := NewLogNotifier(log)

	err := n.Send(context.Background(), Message{
		To:      []string{"head@academy.test"},
		Subject: "Matrix approved",
		Text:    "Cabin Crew matrix was approved",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Level != logrus.InfoLevel {
		t.Errorf("level = %v, want info", entry.Level)
	}
	if entry.Data["subject"] != "Matrix approved" {
		t.Errorf("subject field = %v", entry.Data["subject"])
	}
}

func TestSendGridPrepare(t *testing.T) {
	log, _ := test.NewNullLogger()
	sg := New("SG.key", "Academy", "noreply@academy.test", log).(*SendGrid)

	m := sg.prepare(Message{To: []string{"a@x.test", "b@x.test"}, Subject: "Hello", Text: "body"})
	if len(m.Personalizations) != 1 {
		t.Fatalf("personalizations = %d", len(m.Personalizations))
	}
	p := m.Personalizations[0]
	if p.Subject != "[Academy] Hello" {
		t.Errorf("subject = %q", p.Subject)
	}
	if len(p.To) != 2 {
		t.Errorf("recipients = %d, want 2", len(p.To))
	}
	if m.From.Address != "noreply@academy.test" {
		t.Errorf("from = %q", m.From.Address)
	}
}
