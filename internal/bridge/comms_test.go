package bridge

import "testing"

func TestCommsStatusTransitions(t *testing.T) {
	c := NewComms()
	s := c.Status()
	if s.UpdateCount != 0 || s.Processing || s.Polyphony != 0 {
		t.Fatalf("fresh status = %+v, want zeroes", s)
	}

	c.SetProcessing(true)
	c.PublishBlock(12)
	s = c.Status()
	if !s.Processing {
		t.Error("Processing = false after SetProcessing(true)")
	}
	if s.Polyphony != 12 {
		t.Errorf("Polyphony = %d, want 12", s.Polyphony)
	}
	if s.UpdateCount != 2 {
		t.Errorf("UpdateCount = %d, want 2", s.UpdateCount)
	}

	c.SetProcessing(false)
	s = c.Status()
	if s.Processing || s.UpdateCount != 3 {
		t.Errorf("after stop: %+v, want Processing=false UpdateCount=3", s)
	}
}

func TestCommsRefreshConsumedOnce(t *testing.T) {
	c := NewComms()
	if c.TakeRefresh() {
		t.Fatal("refresh pending on a fresh bundle")
	}
	c.RequestRefresh()
	if !c.TakeRefresh() {
		t.Fatal("refresh request not observed")
	}
	if c.TakeRefresh() {
		t.Error("refresh request observed twice")
	}
}

func TestCommsGestureHelpers(t *testing.T) {
	c := NewComms()
	c.BeginEdit(17)
	c.AdjustValue(17, 0.5)
	c.EndEdit(17)

	want := []FromUI{
		{Kind: FromUIBeginEdit, ID: 17},
		{Kind: FromUIAdjustValue, ID: 17, Value: 0.5},
		{Kind: FromUIEndEdit, ID: 17},
	}
	for i, w := range want {
		m, ok := c.PopFromUI()
		if !ok || m != w {
			t.Fatalf("message %d = %+v, ok=%v, want %+v", i, m, ok, w)
		}
	}
	if _, ok := c.PopFromUI(); ok {
		t.Error("queue not empty after drain")
	}
}

func TestCommsToUIOverflowDrops(t *testing.T) {
	c := NewComms()
	for i := 0; i < QueueCap; i++ {
		if !c.PushToUI(ToUI{Kind: ToUIParamValue, ID: uint32(i)}) {
			t.Fatalf("push %d failed below capacity", i)
		}
	}
	if c.PushToUI(ToUI{Kind: ToUINoteOn}) {
		t.Error("push beyond capacity succeeded")
	}
	m, ok := c.PopToUI()
	if !ok || m.ID != 0 {
		t.Errorf("oldest message after overflow = %+v, ok=%v, want ID 0", m, ok)
	}
}
