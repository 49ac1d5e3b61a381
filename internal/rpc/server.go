package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/untoldecay/icpc/internal/apierr"
	"github.com/untoldecay/icpc/internal/model"
	"github.com/untoldecay/icpc/internal/query"
	"github.com/untoldecay/icpc/internal/storage/sqlite"
)

// Facade is the read surface the control protocol exposes; it is exactly
// internal/query.Facade, named separately here so the server depends on an
// interface rather than a concrete package.
type Facade interface {
	RecentEntries(ctx context.Context, limit, offset int) ([]model.Entry, error)
	EntriesInTimeRange(ctx context.Context, from, to time.Time, limit, offset int) ([]model.Entry, error)
	EntriesWithCode(ctx context.Context, limit, offset int) ([]model.Entry, error)
	EntriesWithPrompts(ctx context.Context, limit, offset int) ([]query.EntryPromptPair, error)
	RecentPrompts(ctx context.Context, limit, offset int) ([]model.Prompt, error)
	PromptsWithEntries(ctx context.Context, limit, offset int) ([]query.PromptEntryPair, error)
	ConversationsByWorkspace(ctx context.Context, workspace string, limit, offset int) ([]model.Conversation, error)
	Conversation(ctx context.Context, id string) (model.Conversation, bool, error)
	RecentEvents(ctx context.Context, limit, offset int) ([]model.Event, error)
	RecentTerminalCommands(ctx context.Context, limit, offset int) ([]model.TerminalCommand, error)
	RecentStatusMessages(ctx context.Context, limit, offset int) ([]model.StatusMessage, error)
	RecentTodos(ctx context.Context, workspace string, limit, offset int) ([]model.Todo, error)
	Stats(ctx context.Context) (map[string]int64, error)
	Schema(ctx context.Context) ([]string, error)
	TableSchema(ctx context.Context, table string) ([]sqlite.ColumnInfo, error)
	Validate(ctx context.Context) (sqlite.ValidationReport, error)
}

// Store is the write-capable slice of the Persistence Store the control
// protocol needs directly, beyond what Facade exposes read-only.
type Store interface {
	Cleanup(ctx context.Context, retention time.Duration) (sqlite.CleanupReport, error)
}

// Info is static daemon identity reported by status/health, supplied by
// cmd/icpcd at construction time.
type Info struct {
	Version       string
	WorkspacePath string
	DatabasePath  string
	AdapterNames  []string
}

// Server is the daemon side of the control protocol: a Unix socket
// listener that reads one JSON request per line and writes one JSON
// response per line, generalized from the teacher's RPC server onto the
// Query Facade instead of issue-tracker mutation handlers.
type Server struct {
	socketPath string
	facade     Facade
	store      Store
	info       Info
	requestTimeout time.Duration
	log        *slog.Logger

	mu        sync.Mutex
	listener  net.Listener
	startTime time.Time
	readyCh   chan struct{}
	shutdownCh chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	onShutdown func()
}

// NewServer constructs a Server. onShutdown is invoked (once) when a
// client issues the shutdown operation, so cmd/icpcd can trigger its own
// graceful-stop sequence; it may be nil.
func NewServer(socketPath string, facade Facade, store Store, info Info, log *slog.Logger, onShutdown func()) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		socketPath:     socketPath,
		facade:         facade,
		store:          store,
		info:           info,
		requestTimeout: 15 * time.Second,
		log:            log,
		readyCh:        make(chan struct{}),
		shutdownCh:     make(chan struct{}),
		onShutdown:     onShutdown,
	}
}

// WaitReady signals once the listener is bound and accepting connections.
func (s *Server) WaitReady() <-chan struct{} {
	return s.readyCh
}

// Start binds the socket and serves connections until ctx is canceled or
// Stop is called. It returns once the listener is closed.
func (s *Server) Start(ctx context.Context) error {
	if err := EnsureSocketDir(s.socketPath); err != nil {
		return fmt.Errorf("rpc: ensure socket dir: %w", err)
	}
	// A stale socket file from a crashed prior daemon must not block bind;
	// the registry's lock-based liveness check is what actually guards
	// against two live daemons, not the socket file's mere existence.
	_ = os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("rpc: listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		s.log.Warn("rpc: chmod socket failed", "error", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.startTime = time.Now()
	s.mu.Unlock()
	close(s.readyCh)

	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdownCh:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("rpc: accept: %w", err)
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Stop closes the listener and waits for in-flight connections to finish.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.shutdownCh)
		s.mu.Lock()
		ln := s.listener
		s.mu.Unlock()
		if ln != nil {
			err = ln.Close()
		}
		s.wg.Wait()
		CleanupSocketDir(s.socketPath)
	})
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(writer, apierr.Fail(apierr.New(apierr.KindInvalid, "malformed request: "+err.Error())))
			continue
		}

		resp := s.dispatch(&req)
		if !s.writeResponse(writer, resp) {
			return
		}
	}
}

func (s *Server) writeResponse(w *bufio.Writer, resp Response) bool {
	data, err := json.Marshal(resp)
	if err != nil {
		return false
	}
	if _, err := w.Write(data); err != nil {
		return false
	}
	if err := w.WriteByte('\n'); err != nil {
		return false
	}
	return w.Flush() == nil
}

func (s *Server) dispatch(req *Request) Response {
	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
	defer cancel()

	if req.Operation != OpPing && req.Operation != OpHealth {
		if err := s.checkVersionCompatibility(req.ClientVersion); err != nil {
			return fail(apierr.KindInvalid, err.Error())
		}
	}

	switch req.Operation {
	case OpPing:
		return ok(PingResult{Message: "pong", Version: s.info.Version})
	case OpStatus:
		return ok(StatusResult{
			Version:       s.info.Version,
			WorkspacePath: s.info.WorkspacePath,
			DatabasePath:  s.info.DatabasePath,
			SocketPath:    s.socketPath,
			PID:           os.Getpid(),
			UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
			Adapters:      s.info.AdapterNames,
		})
	case OpHealth:
		report, err := s.facade.Validate(ctx)
		if err != nil {
			return ok(HealthResult{Healthy: false, Issues: []string{err.Error()}})
		}
		if report.Empty() {
			return ok(HealthResult{Healthy: true})
		}
		return ok(HealthResult{Healthy: false, Issues: validationIssues(report)})
	case OpShutdown:
		if s.onShutdown != nil {
			go s.onShutdown()
		}
		return ok(struct{}{})
	case OpRecentEntries:
		var args PageArgs
		_ = json.Unmarshal(req.Args, &args)
		return result(s.facade.RecentEntries(ctx, args.Limit, args.Offset))
	case OpEntriesInTimeRange:
		var args TimeRangeArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return fail(apierr.KindInvalid, err.Error())
		}
		from, err1 := time.Parse(time.RFC3339, args.From)
		to, err2 := time.Parse(time.RFC3339, args.To)
		if err1 != nil || err2 != nil {
			return fail(apierr.KindInvalid, "from/to must be RFC3339 timestamps")
		}
		return result(s.facade.EntriesInTimeRange(ctx, from, to, 0, 0))
	case OpEntriesWithCode:
		var args PageArgs
		_ = json.Unmarshal(req.Args, &args)
		return result(s.facade.EntriesWithCode(ctx, args.Limit, args.Offset))
	case OpEntriesWithPrompts:
		var args PageArgs
		_ = json.Unmarshal(req.Args, &args)
		return result(s.facade.EntriesWithPrompts(ctx, args.Limit, args.Offset))
	case OpRecentPrompts:
		var args PageArgs
		_ = json.Unmarshal(req.Args, &args)
		return result(s.facade.RecentPrompts(ctx, args.Limit, args.Offset))
	case OpPromptsWithEntries:
		var args PageArgs
		_ = json.Unmarshal(req.Args, &args)
		return result(s.facade.PromptsWithEntries(ctx, args.Limit, args.Offset))
	case OpConversationsByWorkspace:
		var args WorkspaceArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return fail(apierr.KindInvalid, err.Error())
		}
		return result(s.facade.ConversationsByWorkspace(ctx, args.Workspace, args.Limit, args.Offset))
	case OpConversation:
		var args ConversationArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return fail(apierr.KindInvalid, err.Error())
		}
		conv, found, err := s.facade.Conversation(ctx, args.ID)
		if err != nil {
			return fail(apierr.KindStore, err.Error())
		}
		if !found {
			return fail(apierr.KindNotFound, fmt.Sprintf("conversation %q not found", args.ID))
		}
		return result(conv, nil)
	case OpRecentEvents:
		var args PageArgs
		_ = json.Unmarshal(req.Args, &args)
		return result(s.facade.RecentEvents(ctx, args.Limit, args.Offset))
	case OpRecentTerminalCommands:
		var args PageArgs
		_ = json.Unmarshal(req.Args, &args)
		return result(s.facade.RecentTerminalCommands(ctx, args.Limit, args.Offset))
	case OpRecentStatusMessages:
		var args PageArgs
		_ = json.Unmarshal(req.Args, &args)
		return result(s.facade.RecentStatusMessages(ctx, args.Limit, args.Offset))
	case OpRecentTodos:
		var args WorkspaceArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return fail(apierr.KindInvalid, err.Error())
		}
		return result(s.facade.RecentTodos(ctx, args.Workspace, args.Limit, args.Offset))
	case OpStats:
		return result(s.facade.Stats(ctx))
	case OpSchema:
		return result(s.facade.Schema(ctx))
	case OpTableSchema:
		var args TableArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return fail(apierr.KindInvalid, err.Error())
		}
		return result(s.facade.TableSchema(ctx, args.Table))
	case OpValidate:
		return result(s.facade.Validate(ctx))
	case OpCleanup:
		var args CleanupArgs
		_ = json.Unmarshal(req.Args, &args)
		retention := sqlite.DefaultRetention
		if args.RetentionDays > 0 {
			retention = time.Duration(args.RetentionDays) * 24 * time.Hour
		}
		return result(s.store.Cleanup(ctx, retention))
	default:
		return fail(apierr.KindInvalid, fmt.Sprintf("unknown operation %q", req.Operation))
	}
}

func validationIssues(r sqlite.ValidationReport) []string {
	var issues []string
	add := func(n int, desc string) {
		if n > 0 {
			issues = append(issues, fmt.Sprintf("%d %s", n, desc))
		}
	}
	add(r.OrphanEntriesLinkedToMissingPrompt, "entries linked to a missing prompt")
	add(r.OrphanPromptsLinkedToMissingEntry, "prompts linked to a missing entry")
	add(r.OrphanTerminalCommandsMissingEntry, "terminal commands missing their entry")
	add(r.OrphanTerminalCommandsMissingPrompt, "terminal commands missing their prompt")
	add(r.NullTimestampEntries, "entries with a null timestamp")
	add(r.NullTimestampPrompts, "prompts with a null timestamp")
	add(r.NullTimestampEvents, "events with a null timestamp")
	return issues
}

func ok(v any) Response {
	env, err := apierr.Ok(v)
	if err != nil {
		return apierr.Fail(apierr.New(apierr.KindInternal, err.Error()))
	}
	return env
}

func fail(kind apierr.Kind, message string) Response {
	return apierr.Fail(apierr.New(kind, message))
}

func result[T any](v T, err error) Response {
	if err != nil {
		return apierr.FromError(err)
	}
	return ok(v)
}
