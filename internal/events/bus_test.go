package events

import (
	"testing"

	"github.com/mmcdole/trackr/internal/domain"
)

type recordingInjector struct {
	calls map[string]*domain.BookTracking
}

func (r *recordingInjector) InjectTrackedStatus(bookID string, status *domain.BookTracking) {
	if r.calls == nil {
		r.calls = make(map[string]*domain.BookTracking)
	}
	r.calls[bookID] = status
}

func TestBus_DeliversInOrderUntilUnsubscribed(t *testing.T) {
	bus := NewBus(nil)
	var got []string

	unsubA := bus.Subscribe(func(ev Event) { got = append(got, "a:"+ev.ID) })
	bus.Subscribe(func(ev Event) { got = append(got, "b:"+ev.ID) })

	bus.Publish(Event{Entity: EntityBook, ID: "1", Change: ChangeTracked})
	unsubA()
	unsubA() // second call is a no-op
	bus.Publish(Event{Entity: EntityBook, ID: "2", Change: ChangeUntracked})

	want := []string{"a:1", "b:1", "b:2"}
	if len(got) != len(want) {
		t.Fatalf("deliveries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("deliveries = %v, want %v", got, want)
		}
	}
}

func TestInjector_ForwardsBookEventsOnly(t *testing.T) {
	bus := NewBus(nil)
	target := &recordingInjector{}
	bus.Subscribe(Injector(target))

	status := &domain.BookTracking{Status: domain.StatusReading, CurrentChapter: 3}
	bus.Publish(Event{Entity: EntityBook, ID: "b1", Change: ChangeUpdated, Tracking: status})
	bus.Publish(Event{Entity: EntityBook, ID: "b2", Change: ChangeUntracked})
	bus.Publish(Event{Entity: EntityList, ID: "l1", Change: ChangeUpdated})

	if len(target.calls) != 2 {
		t.Fatalf("calls = %v, want b1 and b2", target.calls)
	}
	got := target.calls["b1"]
	if got == nil || got.CurrentChapter != 3 {
		t.Fatalf("b1 status = %#v, want chapter 3", got)
	}
	if got == status {
		t.Fatal("injector received the publisher's pointer instead of a copy")
	}
	if s, ok := target.calls["b2"]; !ok || s != nil {
		t.Fatalf("b2 status = %#v, %v; want nil", s, ok)
	}
}
