package pianoroll

import "io"
import "sort"

import "github.com/gomidi/midi/midimessage/channel"
import "github.com/gomidi/midi/smf"
import "github.com/gomidi/midi/smf/smftrack"
import "github.com/gomidi/midi/smf/smfwriter"
import "github.com/pkg/errors"

var tpq = smf.MetricTicks(480)

// errWriter remembers the first write error
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

type timed struct {
	tick uint64
	on   bool
	note Note
}

// WriteMIDI writes notes as a single track Standard MIDI File on channel 0.
// Each frame lasts ticksPerFrame ticks at 480 ticks per quarter note.
func WriteMIDI(w io.Writer, notes []Note, ticksPerFrame int) error {
	if ticksPerFrame <= 0 {
		return errors.Errorf("pianoroll: ticks per frame %d must be positive", ticksPerFrame)
	}
	events := make([]timed, 0, 2*len(notes))
	for _, n := range notes {
		if n.Pitch < 0 || n.Pitch > 127 {
			return errors.Errorf("pianoroll: pitch %d outside the MIDI range", n.Pitch)
		}
		events = append(events,
			timed{tick: uint64(n.Start * ticksPerFrame), on: true, note: n},
			timed{tick: uint64(n.End * ticksPerFrame), note: n},
		)
	}
	// note offs go first so a repeated pitch is released before it is struck again
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return !events[i].on && events[j].on
	})

	ch := channel.New(0)
	track := smftrack.New(0)
	for _, e := range events {
		key := uint8(e.note.Pitch)
		if e.on {
			track.AddEvents(smftrack.Event{AbsTicks: e.tick, Message: ch.NoteOn(key, uint8(e.note.Velocity))})
		} else {
			track.AddEvents(smftrack.Event{AbsTicks: e.tick, Message: ch.NoteOff(key)})
		}
	}

	ew := &errWriter{w: w}
	track.WriteTo(smfwriter.New(ew, smfwriter.NumTracks(1), smfwriter.TimeFormat(tpq)))
	return errors.Wrap(ew.err, "write midi")
}
