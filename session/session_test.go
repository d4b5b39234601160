package session

import (
	"testing"
)

// fakeConn records frames instead of writing to a socket.
type fakeConn struct {
	sent   []uint16
	closed bool
}

func (c *fakeConn) Send(msgID uint16, data []byte) error {
	c.sent = append(c.sent, msgID)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestSessionBinding(t *testing.T) {
	sess := NewSession("s1", &fakeConn{})

	if pid, rid := sess.Binding(); pid != "" || rid != "" {
		t.Errorf("fresh session bound to %q/%q", pid, rid)
	}

	sess.Bind("p1", "r1")
	pid, rid := sess.Binding()
	if pid != "p1" || rid != "r1" {
		t.Errorf("Binding() = %q/%q, want p1/r1", pid, rid)
	}

	sess.Unbind()
	if pid, rid := sess.Binding(); pid != "" || rid != "" {
		t.Errorf("session still bound to %q/%q after Unbind", pid, rid)
	}
}

func TestManagerLookup(t *testing.T) {
	manager := NewManager()

	a := NewSession("s1", &fakeConn{})
	b := NewSession("s2", &fakeConn{})
	c := NewSession("s3", &fakeConn{})
	manager.Add(a)
	manager.Add(b)
	manager.Add(c)

	a.Bind("p1", "r1")
	b.Bind("p2", "r1")
	c.Bind("p3", "r2")

	if got := manager.GetByRoom("r1"); len(got) != 2 {
		t.Errorf("GetByRoom(r1) = %d sessions, want 2", len(got))
	}
	if got := manager.GetByRoom("r9"); len(got) != 0 {
		t.Errorf("GetByRoom(r9) = %d sessions, want 0", len(got))
	}

	sess, ok := manager.GetByPlayer("p3")
	if !ok || sess.GetID() != "s3" {
		t.Errorf("GetByPlayer(p3) = %v/%v", sess, ok)
	}

	manager.Remove("s3")
	if _, ok := manager.GetByPlayer("p3"); ok {
		t.Error("removed session still found by player")
	}
	if _, ok := manager.Get("s1"); !ok {
		t.Error("unrelated session dropped")
	}
}
