package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/droidbridge/droidbridge/internal/dedup"
	"github.com/droidbridge/droidbridge/internal/events"
	"github.com/droidbridge/droidbridge/internal/logging"
)

func init() {
	logger = logging.NewLogger("cli")
}

// recordingReporter captures updates delivered through the event watcher.
type recordingReporter struct {
	updates []int
	halts   []string
}

func (r *recordingReporter) Start(string)    {}
func (r *recordingReporter) Update(pct int)  { r.updates = append(r.updates, pct) }
func (r *recordingReporter) Status(string)   {}
func (r *recordingReporter) Finish()         {}
func (r *recordingReporter) Halt(msg string) { r.halts = append(r.halts, msg) }
func (r *recordingReporter) Error(error)     {}

func TestPlanAnnouncementsOnBus(t *testing.T) {
	bus := events.NewEventBus(10)
	ch := bus.SubscribeAll()

	announcePlanStarted(bus)
	announcePlanCompleted(bus, &dedup.Report{
		FilesToTransfer: []string{"a", "b"},
		Duplicates:      []string{"c"},
		BytesSaved:      42,
	})
	bus.Close()

	var types []events.EventType
	var completed events.PlanEvent
	for ev := range ch {
		types = append(types, ev.Type())
		if pe, ok := ev.(events.PlanEvent); ok && pe.Type() == events.EventPlanCompleted {
			completed = pe
		}
	}
	assert.Equal(t, []events.EventType{events.EventPlanStarted, events.EventPlanCompleted}, types)
	assert.Equal(t, 2, completed.FilesToTransfer)
	assert.Equal(t, 1, completed.Duplicates)
	assert.Equal(t, uint64(42), completed.BytesSaved)
}

func TestWatchEventsDrivesReporter(t *testing.T) {
	bus := events.NewEventBus(10)
	rec := &recordingReporter{}
	drained := watchEvents(bus, rec)

	bus.PublishProgress(1, 25)
	bus.PublishProgress(1, 80)
	bus.PublishStatus(1, "copying DCIM")
	bus.Close()
	<-drained

	assert.Equal(t, []int{25, 80}, rec.updates)
}
