package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"academy/internal/model"
	"academy/internal/notify"
	ws "academy/internal/websocket"

	"github.com/sirupsen/logrus/hooks/test"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []ws.Event
}

func (p *recordingPublisher) Publish(ev ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) statusEvents() []ws.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ws.Event
	for _, ev := range p.events {
		if ev.Type == EventStatusChanged {
			out = append(out, ev)
		}
	}
	return out
}

type chanNotifier chan notify.Message

func (n chanNotifier) Send(_ context.Context, msg notify.Message) error {
	n <- msg
	return nil
}

func TestTransitionsPublishAndNotify(t *testing.T) {
	f := newFixture(t)
	log, _ := test.NewNullLogger()
	events := &recordingPublisher{}
	mails := make(chanNotifier, 4)
	f.svc = NewMatrixService(MatrixDeps{
		Tx:        f.tx,
		Depts:     f.depts,
		Positions: f.positions,
		Docs:      f.docs,
		Matrix:    f.matrix,
		Users:     f.users,
		Audit:     f.audit,
		Events:    events,
		Notifier:  mails,
		Log:       log,
	})

	td := &model.User{Username: "director", Email: "director@academy.test", Password: "x", Role: model.RoleTrainingDirector}
	if err := f.users.Create(f.ctx, td); err != nil {
		t.Fatalf("create director: %v", err)
	}

	dept, _, _, _ := buildMatrix(t, f)

	got := events.statusEvents()
	if len(got) != 1 || got[0].DepartmentID != dept.ID || got[0].Status != model.MatrixDrafted {
		t.Fatalf("status events = %+v", got)
	}

	select {
	case msg := <-mails:
		if len(msg.To) != 1 || msg.To[0] != td.Email {
			t.Fatalf("mail recipients = %v", msg.To)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("training directors were not notified of the submission")
	}

	if _, err := f.svc.RejectDepartment(f.ctx, director(), dept.ID.String(), "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank rejection reason: %v", err)
	}
	if n := len(events.statusEvents()); n != 1 {
		t.Fatalf("failed transition published %d status events", n)
	}
}
