// Package worker implements the bounded worker pool from spec §4.7: a
// fixed number of symmetric goroutines draining a FIFO job queue guarded
// by a mutex/condition-variable pair, each decoding one request, running
// it against the executor and buffer pool, and replying on the same
// connection. An idle worker performs one maintenance pass (flushing
// dirty tables through a Persister) before waiting again.
package worker

import (
	"context"
	"io"
	"sync"

	"ezdb/internal/ezerr"
	"ezdb/internal/ezql"
	"ezdb/internal/executor"
	"ezdb/internal/keystring"
	"ezdb/internal/persist"
	"ezdb/internal/store"
	"ezdb/internal/transport"
)

// AdminHandler processes the out-of-scope ADMIN action tag (spec §5.5/§6.1).
type AdminHandler interface {
	Handle(ctx context.Context, payload []byte) ([]byte, error)
}

const (
	tagQuery   = "QUERY"
	tagKVQuery = "KVQUERY"
	tagAdmin   = "ADMIN"
)

// Pool runs a fixed number of workers against a shared job queue.
type Pool struct {
	db        *store.Database
	persister persist.Persister
	admin     AdminHandler
	logger    io.Writer

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []transport.Session
	closed bool

	wg sync.WaitGroup
}

// New builds a Pool of n workers. admin may be nil, in which case ADMIN
// requests are rejected with Unimplemented.
func New(n int, db *store.Database, persister persist.Persister, admin AdminHandler, logger io.Writer) *Pool {
	p := &Pool{db: db, persister: persister, admin: admin, logger: logger}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return p
}

// Enqueue adds a connection to the job queue and wakes one worker.
// Signalling is per-enqueue, per spec §4.7.
func (p *Pool) Enqueue(s transport.Session) {
	p.mu.Lock()
	p.queue = append(p.queue, s)
	p.mu.Unlock()
	p.cond.Signal()
}

// Close marks the pool closed, wakes every worker and waits for all of
// them to exit. Workers keep taking jobs until the queue is empty; Enqueue
// does not check the closed flag.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for {
		session, ok := p.dequeueOrMaintain()
		if !ok {
			return
		}
		p.serve(session)
	}
}

// dequeueOrMaintain pops the next job, or — if the queue is empty —
// performs one maintenance pass and then waits on the condition variable.
func (p *Pool) dequeueOrMaintain() (transport.Session, bool) {
	p.mu.Lock()
	for {
		if len(p.queue) > 0 {
			s := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			return s, true
		}
		if p.closed {
			p.mu.Unlock()
			return nil, false
		}
		p.mu.Unlock()
		p.maintain()
		p.mu.Lock()
		if len(p.queue) > 0 || p.closed {
			continue
		}
		p.cond.Wait()
	}
}

// maintain flushes every dirty table to the persister, per spec §4.7 item
// 5 / §5.4. A table that fails to persist is re-marked dirty so the next
// idle pass retries it.
func (p *Pool) maintain() {
	if p.persister == nil {
		return
	}
	for _, name := range p.db.DrainDirty() {
		t, release, err := p.db.AcquireRead(name)
		if err != nil {
			continue
		}
		err = p.persister.SaveTable(name, t)
		release()
		if err != nil {
			p.logf("persist %s: %v", name, err)
			p.db.MarkDirty(name)
		}
	}
}

func (p *Pool) serve(session transport.Session) {
	ctx := context.Background()
	frame, err := session.Recv(ctx)
	if err != nil {
		p.logf("recv: %v", err)
		_ = session.Close()
		return
	}

	reply := p.handle(ctx, frame)
	if err := session.Send(ctx, reply); err != nil {
		p.logf("send: %v", err)
		_ = session.Close()
		return
	}

	p.Enqueue(session)
}

func (p *Pool) handle(ctx context.Context, frame []byte) []byte {
	if len(frame) < keystring.Size {
		return encodeError(ezerr.New(ezerr.Deserialization, "frame shorter than action tag"))
	}
	var tagKS keystring.KeyString
	copy(tagKS[:], frame[:keystring.Size])
	payload := frame[keystring.Size:]

	switch tagKS.String() {
	case tagQuery:
		return p.handleQuery(payload)
	case tagKVQuery:
		return p.handleKVQuery(payload)
	case tagAdmin:
		return p.handleAdmin(ctx, payload)
	default:
		return encodeError(ezerr.Newf(ezerr.Deserialization, "unknown action tag %q", tagKS.String()))
	}
}

func (p *Pool) handleQuery(payload []byte) []byte {
	queries, err := ezql.ParseBinary(payload)
	if err != nil {
		return encodeError(err)
	}
	result, err := executor.Run(p.db, queries)
	if err != nil {
		return encodeError(err)
	}
	if result == nil {
		return ackFrame()
	}
	data, err := result.EncodeBinary()
	if err != nil {
		return encodeError(err)
	}
	return okFrame(data)
}

func (p *Pool) handleKVQuery(payload []byte) []byte {
	queries, err := ezql.ParseKVBinary(payload)
	if err != nil {
		return encodeError(err)
	}
	var last []byte
	for _, q := range queries {
		switch q.Verb {
		case ezql.KVCreate:
			err = p.db.KVCreate(q.Key, q.Value)
		case ezql.KVRead:
			last, err = p.db.KVRead(q.Key)
		case ezql.KVUpdate:
			err = p.db.KVUpdate(q.Key, q.Value)
		case ezql.KVDelete:
			last, err = p.db.KVDelete(q.Key)
		default:
			err = ezerr.Newf(ezerr.Query, "unknown kv verb %q", q.Verb)
		}
		if err != nil {
			return encodeError(err)
		}
	}
	if last == nil {
		return ackFrame()
	}
	return okFrame(last)
}

func (p *Pool) handleAdmin(ctx context.Context, payload []byte) []byte {
	if p.admin == nil {
		return encodeError(ezerr.New(ezerr.Unimplemented, "ADMIN is not implemented"))
	}
	out, err := p.admin.Handle(ctx, payload)
	if err != nil {
		return encodeError(err)
	}
	return okFrame(out)
}

func (p *Pool) logf(format string, args ...any) {
	if p.logger == nil {
		return
	}
	_, _ = io.WriteString(p.logger, ezerr.Newf(ezerr.Io, format, args...).Error()+"\n")
}
