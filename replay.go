package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record tags. The file starts with a single newline-terminated version
// line (no tag byte, no length prefix — a bare fgets-style line, matching
// _examples/original_source/skynet-src/skynet_start.c's thread_record).
// After that, each step begins with exactly one primary tag — 'o'
// (service-open event), 'c' (service-close event), 'b' (bootstrap a new
// context), 'm' (message between two already-live contexts), or 'a' (a
// message arriving from outside the scheduler, source implied) —
// optionally followed by any number of trailing tags drawn from
// {s, h, k, r, t, n} that record deterministic side effects of that same
// step. The first tag that is not one of those six trailing tags ends
// the step and begins the next one (which may itself be another 'o' or
// 'c'); replayReader.step pushes it back a byte for the next call to read
// (spec.md §4.7).
const (
	tagOpen      = 'o' // primary: service-open event
	tagClose     = 'c' // primary: service-close event
	tagBootstrap = 'b' // primary: new context
	tagMessage   = 'm' // primary: context-to-context message
	tagArrival   = 'a' // primary: externally originated message
	tagSocket    = 's' // trailing: socket event delivered during this step
	tagHarbor    = 'h' // trailing: opaque cluster payload, replayed but not interpreted
	tagKill      = 'k' // trailing: a context closed as a result of this step
	tagResponse  = 'r' // trailing: the session this step answers
	tagTimer     = 't' // trailing: the simulated clock reading at this step
	tagNameBind  = 'n' // trailing: a name was bound to a handle
)

// replayFormatVersion is the version string every record file's header
// line must match exactly, or replay refuses to run rather than silently
// replaying against a format it cannot parse correctly.
const replayFormatVersion = "turnstile-replay-v1"

var trailingTags = map[byte]bool{
	tagSocket: true, tagHarbor: true, tagKill: true,
	tagResponse: true, tagTimer: true, tagNameBind: true,
}

// replayReader wraps the record file with the read-ahead needed to detect
// the end of a step: one byte of lookahead, pushed back via UnreadByte.
type replayReader struct {
	*bufio.Reader
	size, read int64
	lastPct    int
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readBlob(r io.Reader, n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// runReplay drives the scheduler deterministically from a recorded file
// instead of from live socket/user traffic. It is launched as an extra
// thread, alongside the socket thread, when Config.RecordFile is set
// (spec.md §4.7); it owns
// context creation and message injection for the whole run and hands
// control back to the worker pool one step at a time, waiting for the
// pool to fully drain before injecting the next step so two steps are
// never in flight concurrently (the determinism contract this file
// exists to satisfy).
func runReplay(m *Monitor, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open record file %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat record file %s: %w", path, err)
	}

	rr := &replayReader{Reader: bufio.NewReader(f), size: info.Size(), lastPct: -1}

	if err := rr.readHeader(); err != nil {
		return err
	}

	for {
		done, err := rr.step(m)
		if err != nil {
			return err
		}
		if done {
			break
		}
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
		if !m.awaitAllAsleep() {
			return nil
		}
	}

	component(m.log, roleRecord).Info().Str("file", path).Msg("replay complete")
	return nil
}

// readHeader consumes the mandatory newline-terminated version line — a
// bare string, no tag byte and no length prefix, matching the original's
// fgets(version, sizeof(SKYNET_RECORD_VERSION), f) read before its tag
// loop even starts.
func (rr *replayReader) readHeader() error {
	line, err := rr.ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("read record header: %w", err)
	}
	rr.read += int64(len(line))
	version := strings.TrimRight(line, "\r\n")
	if version != replayFormatVersion {
		return fmt.Errorf("%w: record file is %q, scheduler expects %q", ErrReplayVersionMismatch, version, replayFormatVersion)
	}
	return nil
}

// step reads one primary tag — 'o', 'c', 'b', 'm', or 'a' — and any
// trailing tags attached to it, applying each to m.reg as it goes. It
// reports done=true only once the file is exhausted; 'o' and 'c' are
// ordinary mid-stream events here, not a header/footer pair, so they
// never end replay by themselves.
func (rr *replayReader) step(m *Monitor) (done bool, err error) {
	tag, err := rr.ReadByte()
	if err == io.EOF {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	switch tag {
	case tagOpen:
		if err := rr.applyOpen(m); err != nil {
			return false, err
		}
	case tagClose:
		if err := rr.applyClose(m); err != nil {
			return false, err
		}
	case tagBootstrap:
		if err := rr.applyBootstrap(m); err != nil {
			return false, err
		}
	case tagMessage:
		if err := rr.applyMessage(m, false); err != nil {
			return false, err
		}
	case tagArrival:
		if err := rr.applyMessage(m, true); err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("%w: unexpected primary tag %q", ErrReplayUnknownTag, tag)
	}

	for {
		next, err := rr.ReadByte()
		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if !trailingTags[next] {
			_ = rr.UnreadByte()
			break
		}
		if err := rr.applyTrailing(m, next); err != nil {
			return false, err
		}
	}

	rr.reportProgress(m)
	return false, nil
}

// applyOpen handles a service-open event: the handle named in the record
// is now live and eligible to receive messages. The reference registry
// has no separate "constructed but not yet open" state — New already
// makes a context dispatchable — so this is a pass-through notification,
// logged for parity with skynet_record_parse_open's diagnostic.
func (rr *replayReader) applyOpen(m *Monitor) error {
	handle, err := readUint32(rr)
	if err != nil {
		return err
	}
	component(m.log, roleRecord).Debug().Uint32("handle", handle).Msg("replay: service open")
	return nil
}

// applyClose handles a service-close event: the named handle's context is
// torn down, the Go analogue of skynet_record_parse_close driving
// skynet_handle_retire.
func (rr *replayReader) applyClose(m *Monitor) error {
	handle, err := readUint32(rr)
	if err != nil {
		return err
	}
	m.reg.Close(handle)
	return nil
}

func (rr *replayReader) applyBootstrap(m *Monitor) error {
	handle, err := readUint32(rr)
	if err != nil {
		return err
	}
	nameLen, err := readUint16(rr)
	if err != nil {
		return err
	}
	name, err := readBlob(rr, uint32(nameLen))
	if err != nil {
		return err
	}
	argsLen, err := readUint32(rr)
	if err != nil {
		return err
	}
	args, err := readBlob(rr, argsLen)
	if err != nil {
		return err
	}

	m.reg.SetHandleIndex(handle)
	if _, err := m.reg.New(string(name), string(args)); err != nil {
		return fmt.Errorf("replay bootstrap handle %08x: %w", handle, err)
	}
	return nil
}

func (rr *replayReader) applyMessage(m *Monitor, external bool) error {
	var source uint32
	var err error
	if !external {
		source, err = readUint32(rr)
		if err != nil {
			return err
		}
	}
	dest, err := readUint32(rr)
	if err != nil {
		return err
	}
	session, err := readUint32(rr)
	if err != nil {
		return err
	}
	dataLen, err := readUint32(rr)
	if err != nil {
		return err
	}
	data, err := readBlob(rr, dataLen)
	if err != nil {
		return err
	}

	msgType := MessageNormal
	if external {
		msgType = MessageSocket
	}
	return m.reg.Push(dest, Message{Source: source, Session: int(session), Type: msgType, Data: data})
}

func (rr *replayReader) applyTrailing(m *Monitor, tag byte) error {
	switch tag {
	case tagSocket:
		handle, err := readUint32(rr)
		if err != nil {
			return err
		}
		n, err := readUint32(rr)
		if err != nil {
			return err
		}
		data, err := readBlob(rr, n)
		if err != nil {
			return err
		}
		return m.reg.Push(handle, Message{Type: MessageSocket, Data: data})
	case tagHarbor:
		n, err := readUint32(rr)
		if err != nil {
			return err
		}
		_, err = readBlob(rr, n)
		return err
	case tagKill:
		handle, err := readUint32(rr)
		if err != nil {
			return err
		}
		m.reg.Close(handle)
		return nil
	case tagResponse:
		_, err := readUint32(rr)
		return err
	case tagTimer:
		ms, err := readUint64(rr)
		if err != nil {
			return err
		}
		return m.RequestFastTime(ms, ms)
	case tagNameBind:
		handle, err := readUint32(rr)
		if err != nil {
			return err
		}
		n, err := readUint16(rr)
		if err != nil {
			return err
		}
		name, err := readBlob(rr, uint32(n))
		if err != nil {
			return err
		}
		m.reg.NameHandle(handle, string(name))
		return nil
	default:
		return fmt.Errorf("%w: trailing tag %q", ErrReplayUnknownTag, tag)
	}
}

// reportProgress logs once per percentage point crossed, not once per
// step — a multi-million-step replay would otherwise flood the log.
func (rr *replayReader) reportProgress(m *Monitor) {
	if rr.size <= 0 {
		return
	}
	buffered := int64(rr.Buffered())
	pct := int(((rr.size - buffered) * 100) / rr.size)
	if pct != rr.lastPct {
		rr.lastPct = pct
		component(m.log, roleRecord).Debug().Int("percent", pct).Msg("replay progress")
	}
}
