package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeRecordFile(t *testing.T, steps ...[]byte) string {
	t.Helper()
	buf := &bytes.Buffer{}
	buf.WriteString(replayFormatVersion)
	buf.WriteByte('\n')
	for _, s := range steps {
		buf.Write(s)
	}

	path := filepath.Join(t.TempDir(), "session.rec")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func openStep(handle uint32) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(tagOpen)
	buf.Write(u32(handle))
	return buf.Bytes()
}

func closeStep(handle uint32) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(tagClose)
	buf.Write(u32(handle))
	return buf.Bytes()
}

func u32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func u16(v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return b[:]
}

func bootstrapStep(handle uint32, name, args string) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(tagBootstrap)
	buf.Write(u32(handle))
	buf.Write(u16(uint16(len(name))))
	buf.WriteString(name)
	buf.Write(u32(uint32(len(args))))
	buf.WriteString(args)
	return buf.Bytes()
}

func messageStep(source, dest, session uint32, data []byte) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(tagMessage)
	buf.Write(u32(source))
	buf.Write(u32(dest))
	buf.Write(u32(session))
	buf.Write(u32(uint32(len(data))))
	buf.Write(data)
	return buf.Bytes()
}

func nameBindStep(handle uint32, name string) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(tagNameBind)
	buf.Write(u32(handle))
	buf.Write(u16(uint16(len(name))))
	buf.WriteString(name)
	return buf.Bytes()
}

// Property 6 / scenario S6: replaying a captured session reproduces the
// same handle assignments, the same name bindings, and delivers the same
// messages in the same arrival order as the live run that produced it.
func TestReplayRoundTrip(t *testing.T) {
	reg := NewRegistry()
	collector := &countingService{}
	reg.RegisterConstructor("collector", func(string) (Service, error) { return collector, nil })

	path := writeRecordFile(t,
		bootstrapStep(1, "collector", "seed"),
		messageStep(0, 1, 7, []byte("hello")),
		nameBindStep(1, "alias"),
	)

	tele := mustTelemetry(t)
	m := NewMonitor(1, nil, path, newLogger(false), reg, tele, nil)
	// No real worker goroutines are running; pretend one is already
	// asleep so runReplay's per-step awaitAllAsleep handshake resolves
	// immediately instead of blocking on workcond.
	m.mu.Lock()
	m.sleep = m.count
	m.mu.Unlock()

	require.NoError(t, runReplay(m, path))

	require.Equal(t, 1, reg.Total())
	h, ok := reg.FindName("alias")
	require.True(t, ok)
	require.Equal(t, uint32(1), h)

	drainAll(reg, -1)
	require.Equal(t, 1, collector.count)
	require.Equal(t, []byte("hello"), collector.last.Data)
	require.Equal(t, 7, collector.last.Session)
}

func TestReplayRejectsVersionMismatch(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("not-the-right-version")
	buf.WriteByte('\n')

	path := filepath.Join(t.TempDir(), "bad.rec")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	reg := NewRegistry()
	tele := mustTelemetry(t)
	m := NewMonitor(1, nil, path, newLogger(false), reg, tele, nil)

	err := runReplay(m, path)
	require.ErrorIs(t, err, ErrReplayVersionMismatch)
}

// 'o' and 'c' are ordinary mid-stream service-open/close events, not a
// file header/footer pair: a record with several of each interleaved
// among bootstrap and message steps must replay every step, not stop
// at the first 'c' or choke on an 'o' it doesn't expect.
func TestReplayHandlesMidStreamOpenAndCloseEvents(t *testing.T) {
	reg := NewRegistry()
	collector := &countingService{}
	reg.RegisterConstructor("collector", func(string) (Service, error) { return collector, nil })

	path := writeRecordFile(t,
		openStep(42),
		bootstrapStep(1, "collector", "seed"),
		openStep(1),
		messageStep(0, 1, 7, []byte("hello")),
		closeStep(42),
		messageStep(0, 1, 8, []byte("world")),
		closeStep(1),
	)

	tele := mustTelemetry(t)
	m := NewMonitor(1, nil, path, newLogger(false), reg, tele, nil)
	m.mu.Lock()
	m.sleep = m.count
	m.mu.Unlock()

	require.NoError(t, runReplay(m, path))

	// The trailing closeStep(1) must have torn the collector context
	// down, not ended replay early at closeStep(42).
	require.Equal(t, 0, reg.Total())
}

func TestReplayRejectsUnknownPrimaryTag(t *testing.T) {
	path := writeRecordFile(t, []byte{'z'})

	reg := NewRegistry()
	tele := mustTelemetry(t)
	m := NewMonitor(1, nil, path, newLogger(false), reg, tele, nil)

	err := runReplay(m, path)
	require.ErrorIs(t, err, ErrReplayUnknownTag)
}

func TestReplayMissingFile(t *testing.T) {
	reg := NewRegistry()
	tele := mustTelemetry(t)
	m := NewMonitor(1, nil, "", newLogger(false), reg, tele, nil)

	err := runReplay(m, filepath.Join(t.TempDir(), "does-not-exist.rec"))
	require.Error(t, err)
}
